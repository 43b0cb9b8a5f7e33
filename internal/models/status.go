package models

import "fmt"

// Status is the disposition of a single work item. The set is closed: every
// TaskResult carries exactly one of the values below.
type Status string

const (
	StatusSuccess  Status = "success"   // Expected artifact produced
	StatusNotFound Status = "not_found" // Input does not exist upstream; never retried
	StatusFailed   Status = "failed"    // External tool ran and reported failure
	StatusTimeout  Status = "timeout"   // External tool exceeded its allotted time
	StatusSkipped  Status = "skipped"   // Not attempted: output exists or precondition missing
	StatusError    Status = "error"     // Orchestration failed before reaching the tool
)

// AllStatuses returns every status in canonical order.
func AllStatuses() []Status {
	return []Status{StatusSuccess, StatusNotFound, StatusFailed, StatusTimeout, StatusSkipped, StatusError}
}

// Valid reports whether s is one of the six known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusNotFound, StatusFailed, StatusTimeout, StatusSkipped, StatusError:
		return true
	}
	return false
}

// IsFailure is true for the statuses that count against the failure-rate gate.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusTimeout || s == StatusError
}

// Retryable reports whether rerunning the item with the same parameters may help.
func (s Status) Retryable() bool {
	return s.IsFailure()
}

// ParseStatus converts a string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}
