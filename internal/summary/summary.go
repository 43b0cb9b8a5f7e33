// Package summary persists one TaskSummary per array task and reads them back
// for merging.
package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/annobatch/internal/filelock"
	"github.com/harrison/annobatch/internal/models"
)

// ErrMalformed is returned by Read for files that are not a valid TaskSummary.
var ErrMalformed = errors.New("malformed task summary")

var taskFile = regexp.MustCompile(`^(?:(.+)_)?summary_task_(\d+)\.json$`)

// FileName returns the deterministic file name for taskID, prefixed with the
// stage when one is set.
func FileName(stage string, taskID int) string {
	if stage == "" {
		return fmt.Sprintf("summary_task_%d.json", taskID)
	}
	return fmt.Sprintf("%s_summary_task_%d.json", stage, taskID)
}

// ParseFileName extracts stage and task id from a summary file name.
func ParseFileName(name string) (stage string, taskID int, ok bool) {
	m := taskFile.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], id, true
}

// Writer persists task summaries into Dir.
type Writer struct {
	Dir   string
	Stage string
	RunID string
}

// NewWriter returns a Writer with a fresh run ID.
func NewWriter(dir, stage string) *Writer {
	return &Writer{Dir: dir, Stage: stage, RunID: uuid.NewString()}
}

// Path returns where the summary for taskID is written.
func (w *Writer) Path(taskID int) string {
	return filepath.Join(w.Dir, FileName(w.Stage, taskID))
}

// Write builds the TaskSummary for one partition, computing its statistics from
// results, and writes it atomically. An existing summary for the same task id
// is replaced.
func (w *Writer) Write(taskID, taskCount int, start, end time.Time, results []models.TaskResult) (string, *models.TaskSummary, error) {
	s := models.NewTaskSummary(taskID, taskCount, start, end, results)
	s.RunID = w.RunID
	s.Stage = w.Stage

	data, err := Encode(s)
	if err != nil {
		return "", nil, err
	}

	path := w.Path(taskID)
	if err := filelock.LockAndWrite(path, data); err != nil {
		return "", nil, fmt.Errorf("write summary for task %d: %w", taskID, err)
	}
	return path, s, nil
}

// Encode serializes a summary as indented JSON with a trailing newline.
func Encode(s *models.TaskSummary) ([]byte, error) {
	if s.Results == nil {
		s.Results = []models.TaskResult{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary for task %d: %w", s.TaskID, err)
	}
	return append(data, '\n'), nil
}

// Read loads and validates a summary file. Decoding and consistency failures
// wrap ErrMalformed; I/O failures are returned as-is.
func Read(path string) (*models.TaskSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s models.TaskSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, filepath.Base(path), err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, filepath.Base(path), err)
	}
	return &s, nil
}

// Glob returns the summary files for stage in dir, sorted by name. An empty
// stage matches only unprefixed summaries.
func Glob(dir, stage string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list summaries in %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		st, _, ok := ParseFileName(e.Name())
		if !ok || st != stage {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// NextFreeTaskID returns the smallest task id >= from with no summary in dir
// for stage. Retries use it so they never overwrite an original partition.
func NextFreeTaskID(dir, stage string, from int) (int, error) {
	paths, err := Glob(dir, stage)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	used := make(map[int]bool, len(paths))
	for _, p := range paths {
		if _, id, ok := ParseFileName(filepath.Base(p)); ok {
			used[id] = true
		}
	}
	id := from
	for used[id] {
		id++
	}
	return id, nil
}
