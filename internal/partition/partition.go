// Package partition splits a work list into contiguous, size-balanced shares so
// that each array task can compute its own share from (task_id, task_count)
// without talking to any other task.
package partition

import (
	"errors"
	"fmt"
)

// ErrInvalidTask is returned when task_id/task_count do not describe a valid array slot.
var ErrInvalidTask = errors.New("invalid array task")

// Partition is one task's share of the work list.
type Partition[T any] struct {
	TaskID    int
	TaskCount int
	Items     []T
}

// Validate checks 0 <= taskID < taskCount.
func Validate(taskID, taskCount int) error {
	if taskCount < 1 {
		return fmt.Errorf("%w: task_count must be >= 1, got %d", ErrInvalidTask, taskCount)
	}
	if taskID < 0 || taskID >= taskCount {
		return fmt.Errorf("%w: task_id %d outside [0, %d)", ErrInvalidTask, taskID, taskCount)
	}
	return nil
}

// Bounds returns the half-open range [start, end) of the share owned by taskID
// when n items are split across taskCount tasks. The first n%taskCount tasks get
// one extra item. Callers must have validated taskID/taskCount.
func Bounds(n, taskID, taskCount int) (start, end int) {
	base := n / taskCount
	rem := n % taskCount
	if taskID < rem {
		start = taskID * (base + 1)
		return start, start + base + 1
	}
	start = rem*(base+1) + (taskID-rem)*base
	return start, start + base
}

// Sizes returns the share size of every task, in task_id order.
func Sizes(n, taskCount int) []int {
	if taskCount < 1 {
		return nil
	}
	sizes := make([]int, taskCount)
	for id := range sizes {
		start, end := Bounds(n, id, taskCount)
		sizes[id] = end - start
	}
	return sizes
}

// Share returns the items owned by taskID. The returned slice aliases items.
// A taskID beyond the item count yields an empty share, not an error.
func Share[T any](items []T, taskID, taskCount int) ([]T, error) {
	if err := Validate(taskID, taskCount); err != nil {
		return nil, err
	}
	start, end := Bounds(len(items), taskID, taskCount)
	return items[start:end:end], nil
}

// New builds the Partition for taskID.
func New[T any](items []T, taskID, taskCount int) (Partition[T], error) {
	share, err := Share(items, taskID, taskCount)
	if err != nil {
		return Partition[T]{}, err
	}
	return Partition[T]{TaskID: taskID, TaskCount: taskCount, Items: share}, nil
}

// Split returns every partition in task_id order.
func Split[T any](items []T, taskCount int) ([]Partition[T], error) {
	if taskCount < 1 {
		return nil, fmt.Errorf("%w: task_count must be >= 1, got %d", ErrInvalidTask, taskCount)
	}
	parts := make([]Partition[T], taskCount)
	for id := 0; id < taskCount; id++ {
		p, err := New(items, id, taskCount)
		if err != nil {
			return nil, err
		}
		parts[id] = p
	}
	return parts, nil
}
