package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/annobatch/internal/models"
)

func anomalyResult(org string, st models.Status, d time.Duration) models.TaskResult {
	return models.TaskResult{Item: models.WorkItem{Organism: org, Release: 1}, Status: st, Duration: d, Detail: "exit status 1"}
}

func TestNewAnomalyMonitorDefaults(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 2}, nil)
	assert.Equal(t, 2, m.config.ConsecutiveFailures)
	assert.Equal(t, 0.5, m.config.FailureRate)
	assert.Equal(t, 10, m.config.MinItems)
	assert.Equal(t, 5.0, m.config.DurationFactor)
}

func TestAnomalyMonitor_ConsecutiveFailuresDoubling(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 3, MinItems: 1000}, nil)

	var fired []int
	for i := 1; i <= 12; i++ {
		for _, a := range m.Record(anomalyResult(fmt.Sprintf("o%d", i), models.StatusFailed, 0)) {
			require.Equal(t, "consecutive_failures", a.Type)
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{3, 6, 12}, fired)

	_, _, streak := m.Stats()
	assert.Equal(t, 12, streak)
}

func TestAnomalyMonitor_StreakResetsOnSuccess(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 3, MinItems: 1000}, nil)

	m.Record(anomalyResult("a", models.StatusFailed, 0))
	m.Record(anomalyResult("b", models.StatusTimeout, 0))
	m.Record(anomalyResult("c", models.StatusSuccess, 0))
	m.Record(anomalyResult("d", models.StatusError, 0))
	got := m.Record(anomalyResult("e", models.StatusFailed, 0))
	assert.Empty(t, got)

	got = m.Record(anomalyResult("f", models.StatusFailed, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "f@1", got[0].Item)
	assert.Equal(t, "low", got[0].Severity)
}

func TestAnomalyMonitor_NotFoundAndSkippedAreNotFailures(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 2, MinItems: 1000}, nil)
	for i := 0; i < 5; i++ {
		assert.Empty(t, m.Record(anomalyResult("n", models.StatusNotFound, 0)))
		assert.Empty(t, m.Record(anomalyResult("s", models.StatusSkipped, 0)))
	}
	_, failed, _ := m.Stats()
	assert.Equal(t, 0, failed)
}

func TestAnomalyMonitor_FailureRateReportedOnce(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 100, MinItems: 4, FailureRate: 0.5}, nil)

	var rates int
	statuses := []models.Status{models.StatusSuccess, models.StatusFailed, models.StatusSuccess, models.StatusFailed, models.StatusFailed, models.StatusFailed}
	for i, st := range statuses {
		for _, a := range m.Record(anomalyResult(fmt.Sprintf("o%d", i), st, 0)) {
			if a.Type == "high_failure_rate" {
				rates++
				assert.Contains(t, a.Description, "2 of 4")
			}
		}
	}
	assert.Equal(t, 1, rates)
}

func TestAnomalyMonitor_DurationOutlier(t *testing.T) {
	m := NewAnomalyMonitor(AnomalyConfig{MinItems: 3, DurationFactor: 4}, nil)
	for i := 0; i < 3; i++ {
		assert.Empty(t, m.Record(anomalyResult("fast", models.StatusSuccess, time.Second)))
	}

	assert.Empty(t, m.Record(anomalyResult("ok", models.StatusSuccess, 3*time.Second)))

	got := m.Record(anomalyResult("slow", models.StatusSuccess, 7*time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, "duration_outlier", got[0].Type)
	assert.Equal(t, "slow@1", got[0].Item)
	assert.Equal(t, "low", got[0].Severity)
}

func TestAnomalyMonitor_AsObserver(t *testing.T) {
	var mu sync.Mutex
	var got []Anomaly
	m := NewAnomalyMonitor(AnomalyConfig{ConsecutiveFailures: 4, MinItems: 1000}, func(a Anomaly) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	})
	counter := &countingObserver{}

	e := New(1, time.Second)
	e.Observer = Observers{m, counter}
	runner := RunnerFunc(func(ctx context.Context, item models.WorkItem) models.TaskResult {
		return models.TaskResult{Status: models.StatusFailed}
	})
	e.Execute(context.Background(), makeItems(4), runner)

	require.Len(t, got, 1)
	assert.Equal(t, "consecutive_failures", got[0].Type)
	assert.Contains(t, got[0].String(), "4 items failed in a row")
	assert.Equal(t, int32(4), counter.finished)
}
