package executor

import "time"

// Progress is a snapshot passed to ProgressFunc. Everything a progress line
// shows is derived from these three fields.
type Progress struct {
	Completed int
	Total     int
	Elapsed   time.Duration
}

// ProgressFunc is invoked by the executor every ProgressEvery completions and
// once more on the final completion.
type ProgressFunc func(p Progress)

// Rate returns completed items per minute.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Completed) / p.Elapsed.Minutes()
}

// ETA estimates the time remaining at the current rate. It returns 0 when
// nothing has completed yet or everything is done.
func (p Progress) ETA() time.Duration {
	remaining := p.Total - p.Completed
	if remaining <= 0 || p.Completed == 0 || p.Elapsed <= 0 {
		return 0
	}
	perItem := p.Elapsed / time.Duration(p.Completed)
	return perItem * time.Duration(remaining)
}

// Percent returns completion as an integer percentage clamped to 0..100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	perc := p.Completed * 100 / p.Total
	if perc > 100 {
		perc = 100
	}
	return perc
}
