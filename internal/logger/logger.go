// Package logger provides logging implementations for annobatch runs.
//
// Console and file loggers share one level scheme and one set of domain
// events: per-item results, progress lines and the end-of-partition summary.
// Implementations are thread-safe; the executor calls LogResult from its
// collector goroutine while the driver logs from its own.
package logger

import (
	"strings"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is implemented by every logger in this package.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)

	// LogProgress writes one progress line for the running partition.
	LogProgress(p executor.Progress)
	// LogResult records one item outcome: failures at WARN, the rest at DEBUG.
	LogResult(r models.TaskResult)
	// LogSummary records the end-of-partition statistics and gate verdict.
	LogSummary(s *models.TaskSummary, threshold float64)
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func enabled(configured, message string) bool {
	return logLevelToInt(message) >= logLevelToInt(configured)
}

// resultLevel picks the level a result is logged at.
func resultLevel(r models.TaskResult) string {
	if r.Status.IsFailure() {
		return "warn"
	}
	return "debug"
}

// MultiLogger fans every call out to each of its loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers; nil entries are dropped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogProgress(p executor.Progress) {
	for _, l := range m.loggers {
		l.LogProgress(p)
	}
}

func (m *MultiLogger) LogResult(r models.TaskResult) {
	for _, l := range m.loggers {
		l.LogResult(r)
	}
}

func (m *MultiLogger) LogSummary(s *models.TaskSummary, threshold float64) {
	for _, l := range m.loggers {
		l.LogSummary(s, threshold)
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string) {}
func (n *NoOpLogger) LogDebug(string) {}
func (n *NoOpLogger) LogInfo(string) {}
func (n *NoOpLogger) LogWarn(string) {}
func (n *NoOpLogger) LogError(string) {}
func (n *NoOpLogger) LogProgress(executor.Progress) {}
func (n *NoOpLogger) LogResult(models.TaskResult) {}
func (n *NoOpLogger) LogSummary(*models.TaskSummary, float64) {}
