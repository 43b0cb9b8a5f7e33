package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// Runner executes a single work item. It is the only place with external side
// effects. Run must return one of the six statuses; it should honour ctx, which
// carries the per-item deadline.
type Runner interface {
	Run(ctx context.Context, item models.WorkItem) models.TaskResult
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, item models.WorkItem) models.TaskResult

// Run calls f(ctx, item).
func (f RunnerFunc) Run(ctx context.Context, item models.WorkItem) models.TaskResult {
	return f(ctx, item)
}

// ErrorFunc adapts an error-returning function to the Runner interface via Classify.
type ErrorFunc func(ctx context.Context, item models.WorkItem) error

// Run calls f and classifies the returned error.
func (f ErrorFunc) Run(ctx context.Context, item models.WorkItem) models.TaskResult {
	return Classify(item, f(ctx, item))
}

// Logger is the subset of logging the executor needs. Nil disables logging.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// ResultLogger is implemented by loggers that format item results themselves.
// When the executor's Logger implements it, results go to LogResult instead.
type ResultLogger interface {
	LogResult(result models.TaskResult)
}

// Observer receives item lifecycle events, e.g. for metrics.
type Observer interface {
	ItemStarted()
	ItemFinished(result models.TaskResult)
}

// Executor runs one share of work items with bounded parallelism and a per-item
// timeout. It holds no domain knowledge and never aborts a batch because an
// item failed.
//
// An item whose deadline passes is recorded as timeout at once, but its pool
// slot stays taken until the runner returns. In-flight runners therefore never
// exceed MaxParallel, and a runner that ignores ctx can keep Execute blocked
// well past ItemTimeout. CommandRunner honors ctx, so its process is killed at
// the deadline.
type Executor struct {
	MaxParallel   int           // Items in flight at once (<=0 means 1)
	ItemTimeout   time.Duration // Per-item deadline (0 disables)
	ProgressEvery int           // Invoke Progress every N completions (<=0 means 10)
	Progress      ProgressFunc  // Optional progress callback
	Logger        Logger        // Optional
	Observer      Observer      // Optional
}

// New returns an Executor with the given pool size and timeout.
func New(maxParallel int, itemTimeout time.Duration) *Executor {
	return &Executor{
		MaxParallel:   maxParallel,
		ItemTimeout:   itemTimeout,
		ProgressEvery: 10,
	}
}

type indexedResult struct {
	index  int
	result models.TaskResult
}

// Execute runs every item of share and returns one result per item in
// completion order.
func (e *Executor) Execute(ctx context.Context, share []models.WorkItem, runner Runner) []models.TaskResult {
	collected := e.execute(ctx, share, runner)
	out := make([]models.TaskResult, len(collected))
	for i, c := range collected {
		out[i] = c.result
	}
	return out
}

// ExecuteOrdered is Execute with results rearranged into share order.
func (e *Executor) ExecuteOrdered(ctx context.Context, share []models.WorkItem, runner Runner) []models.TaskResult {
	collected := e.execute(ctx, share, runner)
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })
	out := make([]models.TaskResult, len(collected))
	for i, c := range collected {
		out[i] = c.result
	}
	return out
}

func (e *Executor) execute(ctx context.Context, share []models.WorkItem, runner Runner) []indexedResult {
	total := len(share)
	if total == 0 {
		return nil
	}

	maxParallel := e.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	if maxParallel > total {
		maxParallel = total
	}
	every := e.ProgressEvery
	if every <= 0 {
		every = 10
	}

	start := time.Now()
	semaphore := make(chan struct{}, maxParallel)
	resultsCh := make(chan indexedResult, total)

	var wg sync.WaitGroup

	go func() {
		defer close(resultsCh)
		for i, item := range share {
			cancelled := ctx.Err() != nil
			if !cancelled {
				select {
				case <-ctx.Done():
					cancelled = true
				case semaphore <- struct{}{}:
				}
			}
			if cancelled {
				// Every item still yields exactly one result.
				for j := i; j < total; j++ {
					resultsCh <- indexedResult{index: j, result: models.TaskResult{
						Item:   share[j],
						Status: models.StatusError,
						Detail: fmt.Sprintf("cancelled before start: %v", ctx.Err()),
					}}
				}
				wg.Wait()
				return
			}

			wg.Add(1)
			go func(index int, item models.WorkItem) {
				defer wg.Done()
				defer func() { <-semaphore }()
				e.runOne(ctx, index, item, runner, resultsCh)
			}(i, item)
		}
		wg.Wait()
	}()

	collected := make([]indexedResult, 0, total)
	for r := range resultsCh {
		collected = append(collected, r)
		e.logResult(r.result)

		completed := len(collected)
		if e.Progress != nil && (completed%every == 0 || completed == total) {
			e.Progress(Progress{Completed: completed, Total: total, Elapsed: time.Since(start)})
		}
	}
	return collected
}

// runOne executes a single item and emits exactly one result on out. The
// result is emitted as soon as the deadline passes, but runOne does not return
// (and so does not release its pool slot) until the runner itself returns.
func (e *Executor) runOne(ctx context.Context, index int, item models.WorkItem, runner Runner, out chan<- indexedResult) {
	itemCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.ItemTimeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, e.ItemTimeout)
	}
	defer cancel()

	if e.Observer != nil {
		e.Observer.ItemStarted()
	}

	started := time.Now()
	if ctx.Err() != nil {
		res := e.deadlineResult(ctx, item)
		if e.Observer != nil {
			e.Observer.ItemFinished(res)
		}
		out <- indexedResult{index: index, result: res}
		return
	}

	done := make(chan models.TaskResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.TaskResult{
					Item:   item,
					Status: models.StatusError,
					Detail: NewItemError(item.Key(), "runner panic", fmt.Errorf("%v", r)).Error(),
				}
			}
		}()
		done <- runner.Run(itemCtx, item)
	}()

	var res models.TaskResult
	returned := false
	select {
	case res = <-done:
		returned = true
		res = e.normalize(itemCtx, item, res)
	case <-itemCtx.Done():
		res = e.deadlineResult(ctx, item)
	}
	res.Duration = time.Since(started)

	if e.Observer != nil {
		e.Observer.ItemFinished(res)
	}
	out <- indexedResult{index: index, result: res}

	// The slot is released only once the runner has returned.
	if !returned {
		<-done
	}
}

func (e *Executor) normalize(itemCtx context.Context, item models.WorkItem, res models.TaskResult) models.TaskResult {
	res.Item = item
	if !res.Status.Valid() {
		detail := fmt.Sprintf("runner returned invalid status %q", res.Status)
		if res.Detail != "" {
			detail += ": " + res.Detail
		}
		return models.TaskResult{Item: item, Status: models.StatusError, Detail: detail}
	}
	// A tool killed by the deadline usually reports a generic failure.
	if res.Status == models.StatusFailed || res.Status == models.StatusError {
		if itemCtx.Err() == context.DeadlineExceeded {
			res.Status = models.StatusTimeout
			res.Detail = (&TimeoutError{Item: item.Key(), TimeoutDuration: e.ItemTimeout}).Error()
		}
	}
	return res
}

func (e *Executor) deadlineResult(parent context.Context, item models.WorkItem) models.TaskResult {
	if parent.Err() != nil {
		return models.TaskResult{
			Item:   item,
			Status: models.StatusError,
			Detail: NewItemError(item.Key(), "cancelled", parent.Err()).Error(),
		}
	}
	return models.TaskResult{
		Item:   item,
		Status: models.StatusTimeout,
		Detail: (&TimeoutError{Item: item.Key(), TimeoutDuration: e.ItemTimeout}).Error(),
	}
}

func (e *Executor) logResult(r models.TaskResult) {
	if e.Logger == nil {
		return
	}
	if rl, ok := e.Logger.(ResultLogger); ok {
		rl.LogResult(r)
		return
	}
	msg := fmt.Sprintf("%s (%s, release %d): %s", r.Item.Key(), r.Item.Organism, r.Item.Release, r.Status)
	if r.Detail != "" {
		msg += " - " + r.Detail
	}
	if r.Status.IsFailure() {
		e.Logger.LogWarn(msg)
		return
	}
	e.Logger.LogDebug(msg)
}
