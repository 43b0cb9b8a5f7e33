package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

// DefaultBarWidth is the number of cells in a progress bar.
const DefaultBarWidth = 10

// FormatProgress renders a progress snapshot as
// "Progress: [====      ] 40/100 (40%) - 12.3 items/min, ETA 4m52s".
func FormatProgress(p executor.Progress, width int, enableColor bool) string {
	bar := NewProgressBar(p.Total, width, enableColor)
	bar.Update(p.Completed)
	bar.SetPrefix("Progress: ")
	return fmt.Sprintf("%s - %.1f items/min, ETA %s", bar.Render(), p.Rate(), formatDuration(p.ETA()))
}

// FormatStatistics renders counters in canonical status order, e.g.
// "success=3 not_found=1 failed=0 timeout=0 skipped=0 error=0".
func FormatStatistics(s models.Statistics) string {
	parts := make([]string, 0, len(models.AllStatuses()))
	for _, st := range models.AllStatuses() {
		parts = append(parts, fmt.Sprintf("%s=%d", st, s.Count(st)))
	}
	return strings.Join(parts, " ")
}

// FormatResult renders one item outcome on a single line.
func FormatResult(r models.TaskResult) string {
	line := fmt.Sprintf("%s release %d: %s", r.Item.Organism, r.Item.Release, r.Status)
	if r.Item.ID != "" {
		line = fmt.Sprintf("%s (%s)", line, r.Item.ID)
	}
	if r.Detail != "" {
		line += " - " + r.Detail
	}
	return fmt.Sprintf("%s [%s]", line, formatDuration(r.Duration))
}

// FormatSummary renders the partition header and gate verdict lines.
func FormatSummary(s *models.TaskSummary, threshold float64) (header, gate string, breached bool) {
	header = fmt.Sprintf("Task %d/%d complete: %d items in %s", s.TaskID, s.TaskCount, s.TotalItems, formatDuration(s.Duration()))
	rate := executor.FailureRate(s.Statistics)
	breached = executor.Breaches(s.Statistics, threshold)
	verdict := "ok"
	if breached {
		verdict = "FAILED"
	}
	gate = fmt.Sprintf("Failure rate %.1f%% (threshold %.1f%%): %s", rate*100, threshold*100, verdict)
	return header, gate, breached
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m". Sub-second durations render as "0s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		seconds := (d % time.Minute) / time.Second
		switch {
		case minutes == 0 && seconds == 0:
			return fmt.Sprintf("%dh", hours)
		case seconds == 0:
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
}
