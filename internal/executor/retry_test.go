package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harrison/annobatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryStopsOnFinalStatuses(t *testing.T) {
	items := []models.WorkItem{
		{ID: "flaky", Organism: "a", Release: 1},
		{ID: "missing", Organism: "b", Release: 1},
		{ID: "broken", Organism: "c", Release: 1},
		{ID: "ok", Organism: "d", Release: 1},
	}

	var mu sync.Mutex
	calls := make(map[string]int)
	runner := RunnerFunc(func(ctx context.Context, item models.WorkItem) models.TaskResult {
		mu.Lock()
		calls[item.ID]++
		n := calls[item.ID]
		mu.Unlock()

		switch item.ID {
		case "flaky":
			if n < 2 {
				return models.TaskResult{Status: models.StatusTimeout}
			}
			return models.TaskResult{Status: models.StatusSuccess}
		case "missing":
			return models.TaskResult{Status: models.StatusNotFound}
		case "broken":
			return models.TaskResult{Status: models.StatusFailed, Detail: "exit status 1"}
		}
		return models.TaskResult{Status: models.StatusSuccess}
	})

	e := New(2, time.Second)
	results := e.Retry(context.Background(), items, runner, RetryPolicy{Attempts: 3, Delay: time.Millisecond})
	require.Len(t, results, 4)

	assert.Equal(t, models.StatusSuccess, results[0].Status)
	assert.Equal(t, models.StatusNotFound, results[1].Status)
	assert.Equal(t, models.StatusFailed, results[2].Status)
	assert.Contains(t, results[2].Detail, "attempt 3/3")
	assert.Equal(t, models.StatusSuccess, results[3].Status)

	assert.Equal(t, 2, calls["flaky"])
	assert.Equal(t, 1, calls["missing"])
	assert.Equal(t, 3, calls["broken"])
	assert.Equal(t, 1, calls["ok"])
}

func TestRetrySingleAttemptHasNoAnnotation(t *testing.T) {
	items := []models.WorkItem{{Organism: "a", Release: 1}}
	runner := RunnerFunc(func(ctx context.Context, item models.WorkItem) models.TaskResult {
		return models.TaskResult{Status: models.StatusFailed, Detail: "exit status 1"}
	})
	results := New(1, 0).Retry(context.Background(), items, runner, RetryPolicy{})
	require.Len(t, results, 1)
	assert.Equal(t, "exit status 1", results[0].Detail)
}
