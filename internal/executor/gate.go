package executor

import "github.com/harrison/annobatch/internal/models"

// DefaultFailureThreshold is the failure rate above which a partition is
// reported as failed.
const DefaultFailureThreshold = 0.5

// FailureRate returns (failed+error+timeout)/total. Skipped items count toward
// total but not the numerator. An empty partition has rate 0.
func FailureRate(stats models.Statistics) float64 {
	total := stats.Total()
	if total == 0 {
		return 0
	}
	return float64(stats.Failures()) / float64(total)
}

// Breaches reports whether the failure rate is strictly greater than threshold.
func Breaches(stats models.Statistics, threshold float64) bool {
	return FailureRate(stats) > threshold
}
