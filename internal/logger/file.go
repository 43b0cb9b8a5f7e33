package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

// FileLogger writes a timestamped run log (run-YYYYMMDD-HHMMSS[-task<N>].log)
// into a log directory and keeps a latest.log symlink pointing at it. Each
// array task opens its own file, so concurrent tasks never share a writer.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates the log directory if needed, opens a new run log and
// repoints latest.log. tag (e.g. "task3") is appended to the file name when
// non-empty.
func NewFileLogger(logDir, tag, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := "run-" + time.Now().Format("20060102-150405")
	if tag != "" {
		name += "-" + tag
	}
	runFile := filepath.Join(logDir, name+".log")

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	// latest.log is best effort: array tasks race on it and the newest wins.
	symlinkPath := filepath.Join(logDir, "latest.log")
	tmpLink := fmt.Sprintf("%s.%d", symlinkPath, os.Getpid())
	_ = os.Remove(tmpLink)
	if err := os.Symlink(filepath.Base(runFile), tmpLink); err == nil {
		if err := os.Rename(tmpLink, symlinkPath); err != nil {
			_ = os.Remove(tmpLink)
		}
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== annobatch run log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// Path returns the run log file path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !enabled(fl.logLevel, strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogProgress writes the uncolored progress line at INFO level.
func (fl *FileLogger) LogProgress(p executor.Progress) {
	fl.LogInfo(FormatProgress(p, DefaultBarWidth, false))
}

// LogResult logs failures at WARN and every other outcome at DEBUG.
func (fl *FileLogger) LogResult(r models.TaskResult) {
	fl.logWithLevel(strings.ToUpper(resultLevel(r)), FormatResult(r))
}

// LogSummary writes the partition summary block.
func (fl *FileLogger) LogSummary(s *models.TaskSummary, threshold float64) {
	if s == nil {
		return
	}
	header, gate, breached := FormatSummary(s, threshold)
	fl.LogInfo(header)
	if s.RunID != "" {
		fl.LogInfo("Run ID: " + s.RunID)
	}
	fl.LogInfo(FormatStatistics(s.Statistics))
	if breached {
		fl.LogError(gate)
		return
	}
	fl.LogInfo(gate)
}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
