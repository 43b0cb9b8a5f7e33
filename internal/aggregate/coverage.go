package aggregate

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/harrison/annobatch/internal/models"
)

type intSet map[int]struct{}

func (s intSet) add(v int) { s[v] = struct{}{} }

func (s intSet) sorted() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

type organismSets struct {
	found, missing, failed, skipped intSet
}

type accumulator struct {
	tasks     []models.TaskRef
	stats     models.Statistics
	releases  intSet
	byRelease map[int]models.ReleaseStats
	organisms map[string]*organismSets
	skipped   []models.SkippedSummary
}

func newAccumulator() *accumulator {
	return &accumulator{
		releases:  make(intSet),
		byRelease: make(map[int]models.ReleaseStats),
		organisms: make(map[string]*organismSets),
	}
}

func (a *accumulator) skip(path, reason string, log Logger) {
	a.skipped = append(a.skipped, models.SkippedSummary{File: filepath.Base(path), Reason: reason})
	if log != nil {
		log.LogWarn(fmt.Sprintf("skipping summary %s: %s", filepath.Base(path), reason))
	}
}

func (a *accumulator) add(path string, s *models.TaskSummary) {
	a.tasks = append(a.tasks, models.TaskRef{
		File:       filepath.Base(path),
		Stage:      s.Stage,
		RunID:      s.RunID,
		TaskID:     s.TaskID,
		TaskCount:  s.TaskCount,
		TotalItems: s.TotalItems,
		Statistics: s.Statistics,
	})
	a.stats.Merge(s.Statistics)

	for _, r := range s.Results {
		rel := r.Item.Release
		a.releases.add(rel)

		rs := a.byRelease[rel]
		org := a.organism(r.Item.Organism)
		switch {
		case r.Status == models.StatusSuccess:
			rs.Successful++
			org.found.add(rel)
		case r.Status == models.StatusNotFound:
			rs.NotFound++
			org.missing.add(rel)
		case r.Status.IsFailure():
			rs.Failed++
			org.failed.add(rel)
		default:
			rs.Skipped++
			org.skipped.add(rel)
		}
		a.byRelease[rel] = rs
	}
}

func (a *accumulator) organism(name string) *organismSets {
	o, ok := a.organisms[name]
	if !ok {
		o = &organismSets{found: make(intSet), missing: make(intSet), failed: make(intSet), skipped: make(intSet)}
		a.organisms[name] = o
	}
	return o
}

func (a *accumulator) report() *models.MergedReport {
	sort.Slice(a.tasks, func(i, j int) bool {
		if a.tasks[i].Stage != a.tasks[j].Stage {
			return a.tasks[i].Stage < a.tasks[j].Stage
		}
		return a.tasks[i].TaskID < a.tasks[j].TaskID
	})
	sort.Slice(a.skipped, func(i, j int) bool {
		if a.skipped[i].File != a.skipped[j].File {
			return a.skipped[i].File < a.skipped[j].File
		}
		return a.skipped[i].Reason < a.skipped[j].Reason
	})

	r := &models.MergedReport{
		Tasks:        a.tasks,
		Statistics:   a.stats,
		TotalItems:   a.stats.Total(),
		Releases:     a.releases.sorted(),
		ByRelease:    a.byRelease,
		Coverage:     make(map[string]models.OrganismCoverage, len(a.organisms)),
		Complete:     []string{},
		Partial:      []models.PartialCoverage{},
		Absent:       []string{},
		Distribution: make(map[int]int),
		Skipped:      a.skipped,
	}
	if r.Tasks == nil {
		r.Tasks = []models.TaskRef{}
	}

	for _, name := range models.SortedKeys(a.organisms) {
		o := a.organisms[name]
		found := o.found.sorted()
		class := Classify(found, r.Releases)
		r.Coverage[name] = models.OrganismCoverage{
			ReleasesFound:   found,
			ReleasesMissing: o.missing.sorted(),
			ReleasesFailed:  o.failed.sorted(),
			ReleasesSkipped: o.skipped.sorted(),
			Class:           class,
		}
		r.Distribution[len(found)]++

		switch class {
		case models.CoverageComplete:
			r.Complete = append(r.Complete, name)
		case models.CoveragePartial:
			r.Partial = append(r.Partial, models.PartialCoverage{Organism: name, Found: len(found)})
		default:
			r.Absent = append(r.Absent, name)
		}
	}
	return r
}

// Classify compares the sorted, de-duplicated releases an organism was found in
// against every release observed in the merge.
func Classify(found, all []int) models.CoverageClass {
	if len(found) == 0 {
		return models.CoverageAbsent
	}
	if len(found) != len(all) {
		return models.CoveragePartial
	}
	for i := range found {
		if found[i] != all[i] {
			return models.CoveragePartial
		}
	}
	return models.CoverageComplete
}
