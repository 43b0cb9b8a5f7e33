package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(statuses ...Status) []TaskResult {
	out := make([]TaskResult, len(statuses))
	for i, s := range statuses {
		out[i] = TaskResult{Item: WorkItem{Organism: "org", Release: i}, Status: s}
	}
	return out
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics(results(
		StatusSuccess, StatusSuccess, StatusNotFound,
		StatusFailed, StatusTimeout, StatusSkipped, StatusError,
	))

	assert.Equal(t, Statistics{Success: 2, NotFound: 1, Failed: 1, Timeout: 1, Skipped: 1, Error: 1}, stats)
	assert.Equal(t, 7, stats.Total())
	assert.Equal(t, 3, stats.Failures())
	for _, s := range AllStatuses() {
		assert.GreaterOrEqual(t, stats.Count(s), 1)
	}
}

func TestStatisticsMerge(t *testing.T) {
	a := Statistics{Success: 3, Failed: 1}
	b := Statistics{Success: 2, NotFound: 4, Error: 1}
	a.Merge(b)
	assert.Equal(t, Statistics{Success: 5, NotFound: 4, Failed: 1, Error: 1}, a)
}

func TestStatisticsJSONIsFlat(t *testing.T) {
	data, err := json.Marshal(Statistics{Success: 1, Timeout: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":1,"not_found":0,"failed":0,"timeout":2,"skipped":0,"error":0}`, string(data))
}

func TestTaskResultJSONDuration(t *testing.T) {
	in := TaskResult{
		Item:     WorkItem{ID: "a", Organism: "homo_sapiens", Release: 12},
		Status:   StatusFailed,
		Detail:   "exit status 2",
		Duration: 1500 * time.Millisecond,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ms":1500`)

	var out TaskResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestTaskSummaryValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewTaskSummary(2, 5, start, start.Add(time.Minute), results(StatusSuccess, StatusFailed))
	require.NoError(t, s.Validate())
	assert.Equal(t, time.Minute, s.Duration())

	s.Statistics.Success++
	assert.Error(t, s.Validate(), "tampered statistics must be rejected")

	s = NewTaskSummary(0, 1, start, start, results(Status("weird")))
	assert.Error(t, s.Validate())
}

func TestRetryCandidates(t *testing.T) {
	r := &MergedReport{Coverage: map[string]OrganismCoverage{
		"b": {ReleasesFailed: []int{3}},
		"a": {ReleasesFailed: []int{1, 2}},
		"c": {ReleasesFound: []int{1}},
	}}
	got := r.RetryCandidates()
	assert.Equal(t, []WorkItem{
		{Organism: "a", Release: 1},
		{Organism: "a", Release: 2},
		{Organism: "b", Release: 3},
	}, got)
}

func TestRetryCandidatesSkipsRecoveredReleases(t *testing.T) {
	r := &MergedReport{Coverage: map[string]OrganismCoverage{
		"homo_sapiens": {ReleasesFound: []int{10, 11}, ReleasesFailed: []int{11, 12}},
		"mus_musculus": {ReleasesFound: []int{10}, ReleasesFailed: []int{10}},
	}}
	assert.Equal(t, []WorkItem{{Organism: "homo_sapiens", Release: 12}}, r.RetryCandidates())
}

func TestReleaseStatsSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, ReleaseStats{}.SuccessRate())

	r := ReleaseStats{Successful: 3, NotFound: 1}
	assert.Equal(t, 4, r.Total())
	assert.InDelta(t, 0.75, r.SuccessRate(), 1e-9)
}
