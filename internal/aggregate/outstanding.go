package aggregate

import (
	"sort"

	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/summary"
)

// LatestOutcomes reads the summaries in paths and keeps, per item key, the
// result from the summary with the highest task id. Retry summaries are written
// at ids above the original partitions, so their outcomes win. Unreadable
// summaries are skipped and logged. Results are ordered by item key.
func LatestOutcomes(paths []string, log Logger) []models.TaskResult {
	var summaries []*models.TaskSummary
	for _, path := range paths {
		s, err := summary.Read(path)
		if err != nil {
			if log != nil {
				log.LogWarn("skipping summary " + path + ": " + err.Error())
			}
			continue
		}
		summaries = append(summaries, s)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TaskID < summaries[j].TaskID
	})

	latest := make(map[string]models.TaskResult)
	for _, s := range summaries {
		for _, r := range s.Results {
			latest[r.Item.Key()] = r
		}
	}

	out := make([]models.TaskResult, 0, len(latest))
	for _, key := range models.SortedKeys(latest) {
		out = append(out, latest[key])
	}
	return out
}

// Outstanding returns the items whose latest outcome is retryable, with their
// original payloads.
func Outstanding(paths []string, log Logger) []models.WorkItem {
	var items []models.WorkItem
	for _, r := range LatestOutcomes(paths, log) {
		if r.Status.Retryable() {
			items = append(items, r.Item)
		}
	}
	return items
}

// MatchItems restores full items for organism/release pairs, e.g. the retry
// candidates of a merged report, from a freshly discovered item list. Pairs
// with no discovered item are returned as-is.
func MatchItems(candidates, discovered []models.WorkItem) []models.WorkItem {
	type pair struct {
		org string
		rel int
	}
	byPair := make(map[pair][]models.WorkItem)
	for _, it := range discovered {
		p := pair{it.Organism, it.Release}
		byPair[p] = append(byPair[p], it)
	}

	var out []models.WorkItem
	for _, c := range candidates {
		if found, ok := byPair[pair{c.Organism, c.Release}]; ok {
			out = append(out, found...)
			continue
		}
		out = append(out, c)
	}
	return out
}
