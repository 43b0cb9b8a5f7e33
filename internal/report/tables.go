// Package report renders merged reports and partition summaries for people:
// terminal tables, a Markdown coverage report and its HTML rendering.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/history"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/partition"
)

// StatusRow is one partition in the status view.
type StatusRow struct {
	Stage       string
	TaskID      int
	TaskCount   int
	TotalItems  int
	Statistics  models.Statistics
	FailureRate float64
	Breached    bool
	Duration    string
}

// StatusRows evaluates the failure gate for each summary, in input order.
func StatusRows(summaries []*models.TaskSummary, threshold float64) []StatusRow {
	rows := make([]StatusRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, StatusRow{
			Stage:       s.Stage,
			TaskID:      s.TaskID,
			TaskCount:   s.TaskCount,
			TotalItems:  s.TotalItems,
			Statistics:  s.Statistics,
			FailureRate: executor.FailureRate(s.Statistics),
			Breached:    executor.Breaches(s.Statistics, threshold),
			Duration:    s.Duration().Round(time.Second).String(),
		})
	}
	return rows
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func rightAlign(from, to int) []table.ColumnConfig {
	var cfgs []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	return cfgs
}

// WriteStatusTable renders one row per partition plus a totals footer. Gate
// cells are colored when enableColor is set.
func WriteStatusTable(w io.Writer, rows []StatusRow, threshold float64, enableColor bool) {
	tw := newTable(w)
	header := table.Row{"Task", "Items"}
	for _, st := range models.AllStatuses() {
		header = append(header, string(st))
	}
	header = append(header, "Failure rate", "Gate", "Duration")
	tw.AppendHeader(header)

	var total models.Statistics
	breaches := 0
	for _, r := range rows {
		total.Merge(r.Statistics)
		gate := "ok"
		if r.Breached {
			gate = "FAILED"
			breaches++
		}
		if enableColor {
			if r.Breached {
				gate = color.New(color.FgRed, color.Bold).Sprint(gate)
			} else {
				gate = color.New(color.FgGreen).Sprint(gate)
			}
		}

		row := table.Row{fmt.Sprintf("%d/%d", r.TaskID, r.TaskCount), r.TotalItems}
		for _, st := range models.AllStatuses() {
			row = append(row, r.Statistics.Count(st))
		}
		row = append(row, percent(r.FailureRate), gate, r.Duration)
		tw.AppendRow(row)
	}

	footer := table.Row{"total", total.Total()}
	for _, st := range models.AllStatuses() {
		footer = append(footer, total.Count(st))
	}
	footer = append(footer, percent(executor.FailureRate(total)),
		fmt.Sprintf("%d breached (> %s)", breaches, percent(threshold)), "")
	tw.AppendFooter(footer)
	tw.SetColumnConfigs(rightAlign(2, 2+len(models.AllStatuses())+1))
	tw.Render()
}

// WriteMergeTables renders the headline statistics, the per-release table and
// the coverage classes of a merged report.
func WriteMergeTables(w io.Writer, r *models.MergedReport) {
	stats := newTable(w)
	stats.SetTitle("Statistics")
	stats.AppendHeader(table.Row{"Status", "Items"})
	for _, st := range models.AllStatuses() {
		stats.AppendRow(table.Row{string(st), r.Statistics.Count(st)})
	}
	stats.AppendFooter(table.Row{"total", r.TotalItems})
	stats.SetColumnConfigs(rightAlign(2, 2))
	stats.Render()

	releases := newTable(w)
	releases.SetTitle("By release")
	releases.AppendHeader(releaseHeader())
	for _, row := range releaseRows(r) {
		releases.AppendRow(row)
	}
	releases.SetColumnConfigs(rightAlign(1, 7))
	releases.Render()

	coverage := newTable(w)
	coverage.SetTitle("Coverage")
	coverage.AppendHeader(table.Row{"Class", "Organisms"})
	coverage.AppendRow(table.Row{string(models.CoverageComplete), len(r.Complete)})
	coverage.AppendRow(table.Row{string(models.CoveragePartial), len(r.Partial)})
	coverage.AppendRow(table.Row{string(models.CoverageAbsent), len(r.Absent)})
	coverage.AppendFooter(table.Row{"releases", len(r.Releases)})
	coverage.SetColumnConfigs(rightAlign(2, 2))
	coverage.Render()

	if len(r.Skipped) > 0 {
		skipped := newTable(w)
		skipped.SetTitle("Skipped summaries")
		skipped.AppendHeader(table.Row{"File", "Reason"})
		for _, s := range r.Skipped {
			skipped.AppendRow(table.Row{s.File, s.Reason})
		}
		skipped.Render()
	}
}

func releaseHeader() table.Row {
	return table.Row{"Release", "Success", "Not found", "Failed", "Skipped", "Total", "Success rate"}
}

func releaseRows(r *models.MergedReport) []table.Row {
	rows := make([]table.Row, 0, len(r.Releases))
	for _, rel := range r.Releases {
		rs := r.ByRelease[rel]
		rows = append(rows, table.Row{
			strconv.Itoa(rel), rs.Successful, rs.NotFound, rs.Failed, rs.Skipped, rs.Total(), percent(rs.SuccessRate()),
		})
	}
	return rows
}

// WritePartitionTable renders the share of every task when n items are split
// across taskCount tasks. items, when non-nil, supplies the first and last key
// of each share.
func WritePartitionTable(w io.Writer, n, taskCount int, items []models.WorkItem) {
	tw := newTable(w)
	header := table.Row{"Task", "Start", "End", "Size"}
	if items != nil {
		header = append(header, "First", "Last")
	}
	tw.AppendHeader(header)
	for id := 0; id < taskCount; id++ {
		start, end := partition.Bounds(n, id, taskCount)
		row := table.Row{id, start, end, end - start}
		if items != nil {
			first, last := "", ""
			if end > start {
				first, last = items[start].Key(), items[end-1].Key()
			}
			row = append(row, first, last)
		}
		tw.AppendRow(row)
	}
	tw.AppendFooter(table.Row{"total", "", "", n})
	tw.SetColumnConfigs(rightAlign(1, 4))
	tw.Render()
}

// WriteHistoryTable renders recorded partitions in the order given.
func WriteHistoryTable(w io.Writer, records []*history.PartitionRecord) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Run", "Task", "Items", "Success", "Failures", "Failure rate", "Gate", "Started"})
	for _, r := range records {
		gate := "ok"
		if r.Breached {
			gate = "FAILED"
		}
		tw.AppendRow(table.Row{
			shortRunID(r.RunID),
			fmt.Sprintf("%d/%d", r.TaskID, r.TaskCount),
			r.TotalItems,
			r.Statistics.Success,
			r.Statistics.Failures(),
			percent(r.FailureRate),
			gate,
			r.StartTime.Local().Format(time.DateTime),
		})
	}
	tw.SetColumnConfigs(rightAlign(3, 6))
	tw.Render()
}

// WriteItemHistoryTable renders every recorded outcome of one item, oldest first.
func WriteItemHistoryTable(w io.Writer, outcomes []*history.ItemOutcome) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Run", "Item", "Status", "Duration", "Detail"})
	for _, o := range outcomes {
		tw.AppendRow(table.Row{
			shortRunID(o.RunID),
			o.ItemKey,
			string(o.Status),
			o.Duration.Round(time.Millisecond).String(),
			o.Detail,
		})
	}
	tw.Render()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
