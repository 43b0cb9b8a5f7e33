package models

import (
	"encoding/json"
	"sort"
	"time"
)

// TaskResult is the outcome of running one WorkItem. Detail carries the cause for
// anything other than success.
type TaskResult struct {
	Item     WorkItem
	Status   Status
	Detail   string
	Duration time.Duration
}

type taskResultJSON struct {
	Item       WorkItem `json:"item"`
	Status     Status   `json:"status"`
	Detail     string   `json:"detail,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
}

// MarshalJSON encodes the duration as integer milliseconds.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskResultJSON{
		Item:       r.Item,
		Status:     r.Status,
		Detail:     r.Detail,
		DurationMS: r.Duration.Milliseconds(),
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var raw taskResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Item = raw.Item
	r.Status = raw.Status
	r.Detail = raw.Detail
	r.Duration = time.Duration(raw.DurationMS) * time.Millisecond
	return nil
}

// Statistics counts results per status. It is always derived from a result list
// or from other Statistics, never maintained alongside execution.
type Statistics struct {
	Success  int `json:"success"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
	Timeout  int `json:"timeout"`
	Skipped  int `json:"skipped"`
	Error    int `json:"error"`
}

// Add increments the counter for s. Unknown statuses count as errors.
func (s *Statistics) Add(st Status) {
	switch st {
	case StatusSuccess:
		s.Success++
	case StatusNotFound:
		s.NotFound++
	case StatusFailed:
		s.Failed++
	case StatusTimeout:
		s.Timeout++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Error++
	}
}

// Merge adds every counter of o into s.
func (s *Statistics) Merge(o Statistics) {
	s.Success += o.Success
	s.NotFound += o.NotFound
	s.Failed += o.Failed
	s.Timeout += o.Timeout
	s.Skipped += o.Skipped
	s.Error += o.Error
}

// Count returns the counter for st.
func (s Statistics) Count(st Status) int {
	switch st {
	case StatusSuccess:
		return s.Success
	case StatusNotFound:
		return s.NotFound
	case StatusFailed:
		return s.Failed
	case StatusTimeout:
		return s.Timeout
	case StatusSkipped:
		return s.Skipped
	case StatusError:
		return s.Error
	}
	return 0
}

// Total returns the number of results counted.
func (s Statistics) Total() int {
	return s.Success + s.NotFound + s.Failed + s.Timeout + s.Skipped + s.Error
}

// Failures returns failed + timeout + error.
func (s Statistics) Failures() int {
	return s.Failed + s.Timeout + s.Error
}

// ComputeStatistics scans results once and counts each status.
func ComputeStatistics(results []TaskResult) Statistics {
	var s Statistics
	for _, r := range results {
		s.Add(r.Status)
	}
	return s
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
