package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/annobatch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSummary(taskID int, statuses ...models.Status) *models.TaskSummary {
	var results []models.TaskResult
	for i, st := range statuses {
		results = append(results, models.TaskResult{
			Item:     models.WorkItem{Organism: "homo_sapiens", Release: 10 + i},
			Status:   st,
			Detail:   string(st),
			Duration: time.Duration(i+1) * time.Second,
		})
	}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := models.NewTaskSummary(taskID, 4, start, start.Add(time.Minute), results)
	s.RunID = "run-a"
	s.Stage = "gff"
	return s
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{"creates database successfully", filepath.Join(t.TempDir(), "history.db"), false},
		{"handles in-memory database", ":memory:", false},
		{"creates parent directories if needed", filepath.Join(t.TempDir(), "nested", "dir", "history.db"), false},
		{"returns error for unwritable path", "/proc/annobatch/history.db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.LatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	_, err = store.RecordPartition(context.Background(), testSummary(0, models.StatusSuccess), "s.json", 0, false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()
	records, err := store.ListPartitions(context.Background(), "gff", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordAndListPartitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testSummary(0, models.StatusSuccess, models.StatusFailed)
	id1, err := store.RecordPartition(ctx, first, "/s/gff_summary_task_0.json", 0.5, false)
	require.NoError(t, err)
	second := testSummary(1, models.StatusTimeout, models.StatusError, models.StatusSuccess)
	id2, err := store.RecordPartition(ctx, second, "/s/gff_summary_task_1.json", 2.0/3, true)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	records, err := store.ListPartitions(ctx, "gff", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	newest := records[0]
	assert.Equal(t, 1, newest.TaskID)
	assert.Equal(t, 4, newest.TaskCount)
	assert.Equal(t, "run-a", newest.RunID)
	assert.Equal(t, 3, newest.TotalItems)
	assert.Equal(t, models.Statistics{Success: 1, Timeout: 1, Error: 1}, newest.Statistics)
	assert.True(t, newest.Breached)
	assert.InDelta(t, 0.667, newest.FailureRate, 0.001)
	assert.Equal(t, "/s/gff_summary_task_1.json", newest.SummaryPath)
	assert.True(t, newest.StartTime.Equal(second.StartTime))
	assert.Equal(t, time.Minute, newest.EndTime.Sub(newest.StartTime))

	limited, err := store.ListPartitions(ctx, "gff", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := store.ListPartitions(ctx, "classify", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestItemHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordPartition(ctx, testSummary(0, models.StatusFailed), "", 1, true)
	require.NoError(t, err)
	retry := testSummary(1000, models.StatusSuccess)
	retry.RunID = "run-b"
	_, err = store.RecordPartition(ctx, retry, "", 0, false)
	require.NoError(t, err)

	outcomes, err := store.ItemHistory(ctx, "homo_sapiens", 10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.Equal(t, "run-a", outcomes[0].RunID)
	assert.Equal(t, models.StatusSuccess, outcomes[1].Status)
	assert.Equal(t, "run-b", outcomes[1].RunID)
	assert.Equal(t, "homo_sapiens@10", outcomes[1].ItemKey)
	assert.Equal(t, time.Second, outcomes[1].Duration)

	none, err := store.ItemHistory(ctx, "homo_sapiens", 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestMerge(ctx, "gff")
	require.NoError(t, err)
	assert.Nil(t, latest)

	report := &models.MergedReport{
		Stage:      "gff",
		Tasks:      []models.TaskRef{{TaskID: 0}, {TaskID: 1}},
		TotalItems: 9,
		Releases:   []int{10, 11, 12},
		Complete:   []string{"b"},
		Partial:    []models.PartialCoverage{{Organism: "a", Found: 2}},
		Absent:     []string{"c", "d"},
		Skipped:    []models.SkippedSummary{{File: "x", Reason: "y"}},
	}
	_, err = store.RecordMerge(ctx, report, "merged_summary.json")
	require.NoError(t, err)

	latest, err = store.LatestMerge(ctx, "gff")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Tasks)
	assert.Equal(t, 9, latest.TotalItems)
	assert.Equal(t, 3, latest.Releases)
	assert.Equal(t, 1, latest.Complete)
	assert.Equal(t, 1, latest.Partial)
	assert.Equal(t, 2, latest.Absent)
	assert.Equal(t, 1, latest.Skipped)
	assert.Equal(t, "merged_summary.json", latest.ReportPath)
	assert.False(t, latest.RecordedAt.IsZero())
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.RecordPartition(ctx, testSummary(0, models.StatusSuccess, models.StatusSuccess), "", 0, false)
	require.NoError(t, err)

	n, err := store.Prune(ctx, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Prune(ctx, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	outcomes, err := store.ItemHistory(ctx, "homo_sapiens", 10)
	require.NoError(t, err)
	assert.Empty(t, outcomes, "item outcomes go with their partition")
}
