package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/harrison/annobatch/internal/models"
)

// Markdown renders the coverage report of a merged report. The output depends
// only on the report, so identical merges give identical documents.
func Markdown(r *models.MergedReport) []byte {
	var b bytes.Buffer

	title := "Coverage report"
	if r.Stage != "" {
		title += ": " + r.Stage
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d items from %d task summaries across %d releases", r.TotalItems, len(r.Tasks), len(r.Releases))
	if len(r.Releases) > 0 {
		fmt.Fprintf(&b, " (%d to %d)", r.Releases[0], r.Releases[len(r.Releases)-1])
	}
	b.WriteString(".\n\n")

	b.WriteString("## Statistics\n\n")
	stats := table.NewWriter()
	stats.AppendHeader(table.Row{"Status", "Items"})
	for _, st := range models.AllStatuses() {
		stats.AppendRow(table.Row{string(st), r.Statistics.Count(st)})
	}
	stats.AppendRow(table.Row{"**total**", r.TotalItems})
	b.WriteString(stats.RenderMarkdown())
	b.WriteString("\n\n")

	if len(r.Releases) > 0 {
		b.WriteString("## By release\n\n")
		rel := table.NewWriter()
		rel.AppendHeader(releaseHeader())
		for _, row := range releaseRows(r) {
			rel.AppendRow(row)
		}
		b.WriteString(rel.RenderMarkdown())
		b.WriteString("\n\n")
	}

	b.WriteString("## Coverage\n\n")
	fmt.Fprintf(&b, "- complete: %d\n- partial: %d\n- absent: %d\n\n", len(r.Complete), len(r.Partial), len(r.Absent))

	if len(r.Distribution) > 0 {
		b.WriteString("### Organisms by releases found\n\n")
		dist := table.NewWriter()
		dist.AppendHeader(table.Row{"Releases found", "Organisms"})
		for _, n := range sortedIntKeys(r.Distribution) {
			dist.AppendRow(table.Row{n, r.Distribution[n]})
		}
		b.WriteString(dist.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if len(r.Complete) > 0 {
		fmt.Fprintf(&b, "### Complete (%d)\n\n", len(r.Complete))
		b.WriteString(strings.Join(code(r.Complete), ", "))
		b.WriteString("\n\n")
	}

	if len(r.Partial) > 0 {
		fmt.Fprintf(&b, "### Partial (%d)\n\n", len(r.Partial))
		part := table.NewWriter()
		part.AppendHeader(table.Row{"Organism", "Found", "Missing", "Failed", "Skipped"})
		for _, p := range r.Partial {
			c := r.Coverage[p.Organism]
			part.AppendRow(table.Row{p.Organism, joinInts(c.ReleasesFound), joinInts(c.ReleasesMissing),
				joinInts(c.ReleasesFailed), joinInts(c.ReleasesSkipped)})
		}
		b.WriteString(part.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if len(r.Absent) > 0 {
		fmt.Fprintf(&b, "### Absent (%d)\n\n", len(r.Absent))
		b.WriteString(strings.Join(code(r.Absent), ", "))
		b.WriteString("\n\n")
	}

	if len(r.Skipped) > 0 {
		b.WriteString("## Skipped summaries\n\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "- `%s`: %s\n", s.File, s.Reason)
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

func code(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "`" + n + "`"
	}
	return out
}

func joinInts(vals []int) string {
	if len(vals) == 0 {
		return "-"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
