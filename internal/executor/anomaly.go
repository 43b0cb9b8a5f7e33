package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// Anomaly is an unusual pattern noticed while a share is still running, such as
// a tool that fails every item or an item far slower than its peers.
type Anomaly struct {
	Type        string // "consecutive_failures", "high_failure_rate", "duration_outlier"
	Description string
	Severity    string // "low", "medium", "high"
	Item        string // Key of the item that triggered it
}

func (a Anomaly) String() string {
	if a.Item == "" {
		return fmt.Sprintf("%s (%s): %s", a.Type, a.Severity, a.Description)
	}
	return fmt.Sprintf("%s (%s) at %s: %s", a.Type, a.Severity, a.Item, a.Description)
}

// AnomalyConfig holds the detection thresholds.
type AnomalyConfig struct {
	// ConsecutiveFailures alerts after N failures in a row (default: 5)
	ConsecutiveFailures int

	// FailureRate alerts once the running failure rate reaches this (default: 0.5)
	FailureRate float64

	// MinItems is the number of finished items before rate and duration checks apply (default: 10)
	MinItems int

	// DurationFactor flags items slower than N times the running mean (default: 5.0)
	DurationFactor float64
}

// DefaultAnomalyConfig returns sensible defaults
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		ConsecutiveFailures: 5,
		FailureRate:         0.5,
		MinItems:            10,
		DurationFactor:      5.0,
	}
}

// AnomalyMonitor is an Observer that reports anomalies through OnAnomaly as
// results arrive. It is safe for concurrent use. A consecutive-failure streak
// is reported when it reaches the threshold and again each time it doubles;
// the failure rate is reported once per share.
type AnomalyMonitor struct {
	OnAnomaly func(Anomaly)

	mu           sync.Mutex
	config       AnomalyConfig
	total        int
	failed       int
	consecutive  int
	nextStreak   int
	rateReported bool
	durationSum  time.Duration
}

// NewAnomalyMonitor creates a monitor with the given thresholds; zero fields
// take their defaults.
func NewAnomalyMonitor(config AnomalyConfig, onAnomaly func(Anomaly)) *AnomalyMonitor {
	def := DefaultAnomalyConfig()
	if config.ConsecutiveFailures <= 0 {
		config.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if config.FailureRate <= 0 {
		config.FailureRate = def.FailureRate
	}
	if config.MinItems <= 0 {
		config.MinItems = def.MinItems
	}
	if config.DurationFactor <= 0 {
		config.DurationFactor = def.DurationFactor
	}
	return &AnomalyMonitor{
		OnAnomaly:  onAnomaly,
		config:     config,
		nextStreak: config.ConsecutiveFailures,
	}
}

// ItemStarted implements Observer.
func (am *AnomalyMonitor) ItemStarted() {}

// ItemFinished implements Observer.
func (am *AnomalyMonitor) ItemFinished(result models.TaskResult) {
	for _, a := range am.Record(result) {
		if am.OnAnomaly != nil {
			am.OnAnomaly(a)
		}
	}
}

// Record accounts for one result and returns the anomalies it triggers.
func (am *AnomalyMonitor) Record(result models.TaskResult) []Anomaly {
	am.mu.Lock()
	defer am.mu.Unlock()

	var anomalies []Anomaly
	key := result.Item.Key()

	// Duration is judged against the mean of the items before this one.
	if am.total >= am.config.MinItems && result.Duration > 0 && am.durationSum > 0 {
		mean := am.durationSum / time.Duration(am.total)
		deviation := float64(result.Duration) / float64(mean)
		if deviation >= am.config.DurationFactor {
			anomalies = append(anomalies, Anomaly{
				Type: "duration_outlier",
				Description: fmt.Sprintf("took %.1fx the mean (%s vs %s)",
					deviation, result.Duration.Round(time.Millisecond), mean.Round(time.Millisecond)),
				Severity: durationSeverity(deviation, am.config.DurationFactor),
				Item:     key,
			})
		}
	}
	am.total++
	am.durationSum += result.Duration

	if !result.Status.IsFailure() {
		am.consecutive = 0
		am.nextStreak = am.config.ConsecutiveFailures
		return anomalies
	}

	am.failed++
	am.consecutive++
	if am.consecutive == am.nextStreak {
		anomalies = append(anomalies, Anomaly{
			Type:        "consecutive_failures",
			Description: fmt.Sprintf("%d items failed in a row, last: %s", am.consecutive, result.Detail),
			Severity:    streakSeverity(am.consecutive, am.config.ConsecutiveFailures),
			Item:        key,
		})
		am.nextStreak *= 2
	}

	rate := float64(am.failed) / float64(am.total)
	if !am.rateReported && am.total >= am.config.MinItems && rate >= am.config.FailureRate {
		am.rateReported = true
		anomalies = append(anomalies, Anomaly{
			Type:        "high_failure_rate",
			Description: fmt.Sprintf("%d of %d items failed so far (%.0f%%)", am.failed, am.total, rate*100),
			Severity:    rateSeverity(rate),
			Item:        key,
		})
	}
	return anomalies
}

// Stats returns the items seen, failures and the current failure streak.
func (am *AnomalyMonitor) Stats() (total, failed, consecutive int) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.total, am.failed, am.consecutive
}

func streakSeverity(n, threshold int) string {
	if n >= 4*threshold {
		return "high"
	} else if n >= 2*threshold {
		return "medium"
	}
	return "low"
}

func rateSeverity(rate float64) string {
	if rate >= 0.8 {
		return "high"
	} else if rate >= 0.6 {
		return "medium"
	}
	return "low"
}

func durationSeverity(deviation, factor float64) string {
	if deviation >= 3*factor {
		return "high"
	} else if deviation >= 2*factor {
		return "medium"
	}
	return "low"
}

// Observers fans item events out to several observers.
type Observers []Observer

// ItemStarted implements Observer.
func (o Observers) ItemStarted() {
	for _, obs := range o {
		obs.ItemStarted()
	}
}

// ItemFinished implements Observer.
func (o Observers) ItemFinished(result models.TaskResult) {
	for _, obs := range o {
		obs.ItemFinished(result)
	}
}
