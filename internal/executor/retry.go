package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// RetryPolicy bounds how often a retryable item is rerun within one process.
type RetryPolicy struct {
	Attempts int           // Total attempts per item, including the first (<=0 means 1)
	Delay    time.Duration // Pause between rounds
}

// Retry runs items through e, then reruns those whose status is retryable until
// they stop being retryable or the attempts are used up. not_found and success
// are final after one attempt. The last result for each item wins and is
// returned in input order.
func (e *Executor) Retry(ctx context.Context, items []models.WorkItem, runner Runner, policy RetryPolicy) []models.TaskResult {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	final := make([]models.TaskResult, len(items))
	pending := make([]int, len(items))
	for i := range items {
		pending[i] = i
	}

rounds:
	for attempt := 1; attempt <= attempts && len(pending) > 0; attempt++ {
		if attempt > 1 && policy.Delay > 0 {
			select {
			case <-ctx.Done():
				break rounds
			case <-time.After(policy.Delay):
			}
		}

		round := make([]models.WorkItem, len(pending))
		for i, idx := range pending {
			round[i] = items[idx]
		}
		results := e.ExecuteOrdered(ctx, round, runner)

		var next []int
		for i, idx := range pending {
			r := results[i]
			if attempts > 1 {
				r.Detail = annotateAttempt(r.Detail, attempt, attempts)
			}
			final[idx] = r
			if r.Status.Retryable() {
				next = append(next, idx)
			}
		}
		if e.Logger != nil && len(next) > 0 && attempt < attempts {
			e.Logger.LogWarn(fmt.Sprintf("attempt %d/%d: %d item(s) still failing, retrying", attempt, attempts, len(next)))
		}
		pending = next
	}
	return final
}

func annotateAttempt(detail string, attempt, attempts int) string {
	tag := fmt.Sprintf("attempt %d/%d", attempt, attempts)
	if detail == "" {
		return tag
	}
	return detail + " (" + tag + ")"
}
