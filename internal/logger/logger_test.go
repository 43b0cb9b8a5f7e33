package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

func sampleSummary(stats ...models.Status) *models.TaskSummary {
	var results []models.TaskResult
	for i, st := range stats {
		results = append(results, models.TaskResult{
			Item:   models.WorkItem{Organism: "homo_sapiens", Release: 10 + i},
			Status: st,
		})
	}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.NewTaskSummary(2, 5, start, start.Add(90*time.Second), results)
}

func TestFormatProgress(t *testing.T) {
	p := executor.Progress{Completed: 40, Total: 100, Elapsed: 200 * time.Second}
	assert.Equal(t, "Progress: [====      ] 40/100 (40%) - 12.0 items/min, ETA 5m", FormatProgress(p, 10, false))

	done := executor.Progress{Completed: 7, Total: 7, Elapsed: time.Minute}
	assert.Equal(t, "Progress: [==========] 7/7 (100%) - 7.0 items/min, ETA 0s", FormatProgress(done, 10, false))

	empty := executor.Progress{}
	assert.Equal(t, "Progress: [          ] 0/0 (0%) - 0.0 items/min, ETA 0s", FormatProgress(empty, 10, false))
}

func TestProgressBarRender(t *testing.T) {
	pb := NewProgressBar(8, 0, false)
	pb.Update(3)
	pb.Increment()
	assert.Equal(t, 50, pb.Percentage())
	assert.Equal(t, "[=====     ] 4/8 (50%)", pb.Render())

	pb.Update(12)
	assert.Equal(t, 100, pb.Percentage())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{400 * time.Millisecond, "0s"},
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{4*time.Minute + 52*time.Second, "4m52s"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour + time.Second, "1h0m1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}

func TestFormatStatistics(t *testing.T) {
	s := models.Statistics{Success: 3, NotFound: 1, Error: 2}
	assert.Equal(t, "success=3 not_found=1 failed=0 timeout=0 skipped=0 error=2", FormatStatistics(s))
}

func TestFormatSummaryGate(t *testing.T) {
	breach := sampleSummary(models.StatusFailed, models.StatusFailed, models.StatusTimeout, models.StatusError,
		models.StatusSuccess, models.StatusSuccess)
	header, gate, breached := FormatSummary(breach, 0.5)
	assert.Equal(t, "Task 2/5 complete: 6 items in 1m30s", header)
	assert.True(t, breached)
	assert.Equal(t, "Failure rate 66.7% (threshold 50.0%): FAILED", gate)

	ok := sampleSummary(models.StatusFailed, models.StatusFailed, models.StatusTimeout,
		models.StatusSuccess, models.StatusSuccess, models.StatusSkipped)
	_, gate, breached = FormatSummary(ok, 0.5)
	assert.False(t, breached)
	assert.Contains(t, gate, "50.0%")
	assert.True(t, strings.HasSuffix(gate, ": ok"))
}

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "WARN")
	cl.LogDebug("hidden")
	cl.LogInfo("hidden")
	cl.LogWarn("careful")
	cl.LogError("broken")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] careful")
	assert.Contains(t, out, "[ERROR] broken")
	assert.NotContains(t, out, "\x1b[", "buffers never get color")
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] `, out)
}

func TestConsoleLoggerResults(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	cl.LogResult(models.TaskResult{Item: models.WorkItem{Organism: "mus_musculus", Release: 11}, Status: models.StatusSuccess})
	assert.Empty(t, buf.String(), "success is debug-level")

	cl.LogResult(models.TaskResult{
		Item:     models.WorkItem{ID: "x.gff3", Organism: "mus_musculus", Release: 11},
		Status:   models.StatusTimeout,
		Detail:   "item x.gff3 timed out after 5m",
		Duration: 5 * time.Minute,
	})
	assert.Contains(t, buf.String(), "[WARN] mus_musculus release 11: timeout (x.gff3) - item x.gff3 timed out after 5m [5m]")
}

func TestConsoleLoggerProgressAndSummary(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.LogProgress(executor.Progress{Completed: 1, Total: 2, Elapsed: time.Second})
	cl.LogSummary(sampleSummary(models.StatusFailed, models.StatusFailed, models.StatusSuccess), 0.5)

	out := buf.String()
	assert.Contains(t, out, "Progress: [=====     ] 1/2 (50%)")
	assert.Contains(t, out, "[INFO] Task 2/5 complete: 3 items")
	assert.Contains(t, out, "success=1 not_found=0 failed=2")
	assert.Contains(t, out, "[ERROR] Failure rate 66.7%")
}

func TestNilWriterIsSilent(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		cl.LogInfo("x")
		cl.LogProgress(executor.Progress{})
		cl.LogSummary(sampleSummary(models.StatusSuccess), 0.5)
	})
}

func TestFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	fl, err := NewFileLogger(dir, "task3", "debug")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(fl.Path(), "-task3.log"))
	fl.LogTrace("too verbose")
	fl.LogDebug("starting")
	fl.LogResult(models.TaskResult{Item: models.WorkItem{Organism: "a", Release: 1}, Status: models.StatusSuccess})
	fl.LogProgress(executor.Progress{Completed: 1, Total: 1, Elapsed: time.Second})
	fl.LogSummary(sampleSummary(models.StatusSuccess), 0.5)
	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "=== annobatch run log ===")
	assert.NotContains(t, out, "too verbose")
	assert.Contains(t, out, "[DEBUG] starting")
	assert.Contains(t, out, "[DEBUG] a release 1: success")
	assert.Contains(t, out, "Progress: [==========] 1/1 (100%)")
	assert.Contains(t, out, "[INFO] Failure rate 0.0% (threshold 50.0%): ok")

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.Path()), target)
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiLogger(NewConsoleLogger(&a, "info"), nil, NewConsoleLogger(&b, "error"), NewNoOpLogger())
	m.LogInfo("hello")
	m.LogError("bad")
	m.LogResult(models.TaskResult{Item: models.WorkItem{Organism: "a"}, Status: models.StatusFailed})

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, a.String(), "a release 0: failed")
	assert.NotContains(t, b.String(), "hello")
	assert.Contains(t, b.String(), "bad")
}

var _ Logger = (*ConsoleLogger)(nil)
var _ Logger = (*FileLogger)(nil)
var _ Logger = (*MultiLogger)(nil)
var _ Logger = (*NoOpLogger)(nil)
var _ executor.Logger = (*ConsoleLogger)(nil)
