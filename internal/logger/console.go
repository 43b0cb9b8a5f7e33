package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

// ConsoleLogger logs partition progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when the writer is a terminal and NO_COLOR is unset.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	barWidth    int
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else means "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: IsTerminal(writer),
		barWidth:    DefaultBarWidth,
	}
}

// IsTerminal reports whether w is a color-capable terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor && (f == os.Stdout || f == os.Stderr) {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !enabled(cl.logLevel, strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	tag := level
	if cl.colorOutput {
		tag = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

func statusColor(s models.Status) *color.Color {
	switch {
	case s == models.StatusSuccess:
		return color.New(color.FgGreen)
	case s.IsFailure():
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

// LogProgress writes the progress line at INFO level.
// Format: "[HH:MM:SS] Progress: [====      ] 40/100 (40%) - 12.3 items/min, ETA 4m52s"
func (cl *ConsoleLogger) LogProgress(p executor.Progress) {
	if cl.writer == nil || !enabled(cl.logLevel, "info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), FormatProgress(p, cl.barWidth, cl.colorOutput))
}

// LogResult logs failures at WARN and every other outcome at DEBUG.
func (cl *ConsoleLogger) LogResult(r models.TaskResult) {
	level := resultLevel(r)
	if cl.writer == nil || !enabled(cl.logLevel, level) {
		return
	}
	line := FormatResult(r)
	if cl.colorOutput {
		line = strings.Replace(line, string(r.Status), statusColor(r.Status).Sprint(r.Status), 1)
	}
	cl.logWithLevel(strings.ToUpper(level), line)
}

// LogSummary logs the partition summary: header, per-status counters and the
// gate verdict. A breached gate is logged at ERROR.
func (cl *ConsoleLogger) LogSummary(s *models.TaskSummary, threshold float64) {
	if cl.writer == nil || s == nil {
		return
	}
	header, gate, breached := FormatSummary(s, threshold)
	stats := FormatStatistics(s.Statistics)

	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		if breached {
			gate = color.New(color.FgRed, color.Bold).Sprint(gate)
		} else {
			gate = color.New(color.FgGreen).Sprint(gate)
		}
	}

	cl.LogInfo(header)
	cl.LogInfo(stats)
	if breached {
		cl.LogError(gate)
	} else {
		cl.LogInfo(gate)
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}
