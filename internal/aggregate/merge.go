// Package aggregate merges per-task summaries into one MergedReport and
// classifies organism coverage across releases.
//
// Merging is a pure function of the summary files: paths are sorted before
// reading and every derived field is built from sums and set unions, so the
// same files always produce the same report bytes.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/annobatch/internal/filelock"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/summary"
)

// Logger receives warnings about summaries that could not be used.
type Logger interface {
	LogWarn(message string)
}

// Merge reads every summary in paths and builds the MergedReport. Files that
// cannot be read or fail validation are skipped, recorded in Skipped and logged;
// they never abort the merge.
func Merge(paths []string, log Logger) *models.MergedReport {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	acc := newAccumulator()
	seen := make(map[string]string) // stage/task_id -> file

	var summaries []*models.TaskSummary
	var files []string
	for _, path := range sorted {
		s, err := summary.Read(path)
		if err != nil {
			acc.skip(path, err.Error(), log)
			continue
		}
		key := fmt.Sprintf("%s/%d", s.Stage, s.TaskID)
		if prev, dup := seen[key]; dup {
			acc.skip(prev, fmt.Sprintf("superseded by %s (same task_id %d)", filepath.Base(path), s.TaskID), log)
			idx := indexOf(files, prev)
			summaries = append(summaries[:idx], summaries[idx+1:]...)
			files = append(files[:idx], files[idx+1:]...)
		}
		seen[key] = path
		summaries = append(summaries, s)
		files = append(files, path)
	}

	for i, s := range summaries {
		acc.add(files[i], s)
	}
	return acc.report()
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// MergeDir merges every summary for stage found in dir.
func MergeDir(dir, stage string, log Logger) (*models.MergedReport, error) {
	paths, err := summary.Glob(dir, stage)
	if err != nil {
		return nil, err
	}
	report := Merge(paths, log)
	report.Stage = stage
	return report, nil
}

// Encode serializes the report canonically: indented JSON, map keys sorted by
// encoding/json, trailing newline.
func Encode(r *models.MergedReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode merged report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReport writes the report atomically to path.
func WriteReport(path string, r *models.MergedReport) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("write merged report: %w", err)
	}
	return nil
}

// ReadReport loads a merged report written by WriteReport.
func ReadReport(path string) (*models.MergedReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r models.MergedReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode merged report %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}
