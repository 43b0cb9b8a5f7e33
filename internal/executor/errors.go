package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// ErrNotFound marks an input that does not exist upstream. Runners return it
// (or wrap it) so the item is classified not_found instead of failed.
var ErrNotFound = errors.New("input not found")

// SkipError marks an item that was deliberately not attempted.
type SkipError struct {
	Reason string
}

// Error implements the error interface for SkipError.
func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns a SkipError with the given reason.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// ItemError is an orchestration-side failure for a single item: the executor or
// runner could not even reach the external tool.
type ItemError struct {
	Item      string    // Key of the item that failed
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewItemError creates a new ItemError with the current timestamp.
func NewItemError(item, msg string, err error) *ItemError {
	return &ItemError{
		Item:      item,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for ItemError.
func (e *ItemError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("item %s: %s", e.Item, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an item that exceeded its allotted duration.
type TimeoutError struct {
	Item            string
	TimeoutDuration time.Duration
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("item %s: timeout after %v", e.Item, e.TimeoutDuration)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Classify maps an error returned by a runner onto the status taxonomy:
//
//	nil                      -> success
//	ErrNotFound              -> not_found
//	*SkipError               -> skipped
//	deadline exceeded        -> timeout
//	*exec.ExitError          -> failed
//	anything else            -> error
func Classify(item models.WorkItem, err error) models.TaskResult {
	res := models.TaskResult{Item: item}
	var skip *SkipError
	var exitErr *exec.ExitError

	switch {
	case err == nil:
		res.Status = models.StatusSuccess
		return res
	case errors.Is(err, ErrNotFound):
		res.Status = models.StatusNotFound
	case errors.As(err, &skip):
		res.Status = models.StatusSkipped
		res.Detail = skip.Reason
		return res
	case IsTimeoutError(err):
		res.Status = models.StatusTimeout
	case errors.As(err, &exitErr):
		res.Status = models.StatusFailed
	default:
		res.Status = models.StatusError
	}
	res.Detail = err.Error()
	return res
}
