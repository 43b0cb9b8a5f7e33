package models

// CoverageClass classifies an organism against the full set of observed releases.
type CoverageClass string

const (
	CoverageComplete CoverageClass = "complete" // found in every observed release
	CoveragePartial  CoverageClass = "partial"  // found in a non-empty strict subset
	CoverageAbsent   CoverageClass = "absent"   // never found
)

// TaskRef is the per-partition entry of a MergedReport.
type TaskRef struct {
	File       string     `json:"file"`
	Stage      string     `json:"stage,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	TaskID     int        `json:"task_id"`
	TaskCount  int        `json:"task_count"`
	TotalItems int        `json:"total_items"`
	Statistics Statistics `json:"statistics"`
}

// ReleaseStats is the per-release view. Failed, timeout and error are collapsed
// into Failed.
type ReleaseStats struct {
	Successful int `json:"successful"`
	NotFound   int `json:"not_found"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Total returns the number of items recorded for the release.
func (r ReleaseStats) Total() int {
	return r.Successful + r.NotFound + r.Failed + r.Skipped
}

// SuccessRate returns Successful/Total, or 0 for an empty release.
func (r ReleaseStats) SuccessRate() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Successful) / float64(r.Total())
}

// OrganismCoverage records, per organism, which releases ended in which outcome.
// All slices are sorted and free of duplicates.
type OrganismCoverage struct {
	ReleasesFound   []int         `json:"releases_found"`
	ReleasesMissing []int         `json:"releases_missing"`
	ReleasesFailed  []int         `json:"releases_failed"`
	ReleasesSkipped []int         `json:"releases_skipped,omitempty"`
	Class           CoverageClass `json:"class"`
}

// PartialCoverage names an organism found in some but not all releases.
type PartialCoverage struct {
	Organism string `json:"organism"`
	Found    int    `json:"found"`
}

// SkippedSummary records a summary file the merge could not use.
type SkippedSummary struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// MergedReport is derived in full from the summary files present at merge time.
// It carries no wall-clock fields so that repeated merges serialize identically.
type MergedReport struct {
	Stage        string                      `json:"stage,omitempty"`
	Tasks        []TaskRef                   `json:"tasks"`
	TotalItems   int                         `json:"total_items"`
	Statistics   Statistics                  `json:"statistics"`
	Releases     []int                       `json:"releases"`
	ByRelease    map[int]ReleaseStats        `json:"by_release"`
	Coverage     map[string]OrganismCoverage `json:"coverage"`
	Complete     []string                    `json:"complete"`
	Partial      []PartialCoverage           `json:"partial"`
	Absent       []string                    `json:"absent"`
	Distribution map[int]int                 `json:"coverage_distribution"`
	Skipped      []SkippedSummary            `json:"skipped_summaries,omitempty"`
}

// RetryCandidates lists the organism/release pairs whose outcome was a
// retryable failure, in organism then release order. A release that was also
// found, such as one fixed by a merged retry summary, is not a candidate.
func (r *MergedReport) RetryCandidates() []WorkItem {
	var items []WorkItem
	for _, org := range SortedKeys(r.Coverage) {
		cov := r.Coverage[org]
		found := make(map[int]bool, len(cov.ReleasesFound))
		for _, rel := range cov.ReleasesFound {
			found[rel] = true
		}
		for _, rel := range cov.ReleasesFailed {
			if !found[rel] {
				items = append(items, WorkItem{Organism: org, Release: rel})
			}
		}
	}
	return items
}
