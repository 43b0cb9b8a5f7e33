package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskSummary is the persisted record of one partition's execution. It is
// written once, at the end of the partition, and never modified.
type TaskSummary struct {
	RunID      string       `json:"run_id,omitempty"`
	Stage      string       `json:"stage,omitempty"`
	TaskID     int          `json:"task_id"`
	TaskCount  int          `json:"task_count"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	TotalItems int          `json:"total_items"`
	Results    []TaskResult `json:"results"`
	Statistics Statistics   `json:"statistics"`
}

// NewTaskSummary builds a summary whose Statistics are computed from results.
func NewTaskSummary(taskID, taskCount int, start, end time.Time, results []TaskResult) *TaskSummary {
	return &TaskSummary{
		TaskID:     taskID,
		TaskCount:  taskCount,
		StartTime:  start,
		EndTime:    end,
		TotalItems: len(results),
		Results:    results,
		Statistics: ComputeStatistics(results),
	}
}

// Duration returns EndTime - StartTime.
func (s *TaskSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Validate checks the summary is internally consistent: every result carries a
// known status and the stored statistics match the results.
func (s *TaskSummary) Validate() error {
	if s.TaskID < 0 {
		return fmt.Errorf("task_id must be non-negative, got %d", s.TaskID)
	}
	if s.TotalItems != len(s.Results) {
		return fmt.Errorf("total_items %d does not match %d results", s.TotalItems, len(s.Results))
	}
	for i, r := range s.Results {
		if !r.Status.Valid() {
			return fmt.Errorf("result %d (%s): unknown status %q", i, r.Item.Key(), r.Status)
		}
		if r.Item.Organism == "" {
			return fmt.Errorf("result %d: missing organism", i)
		}
	}
	if ComputeStatistics(s.Results) != s.Statistics {
		return errors.New("statistics do not match results")
	}
	return nil
}
