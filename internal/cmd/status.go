package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/aggregate"
	"github.com/harrison/annobatch/internal/config"
	"github.com/harrison/annobatch/internal/discovery"
	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/history"
	"github.com/harrison/annobatch/internal/logger"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/report"
	"github.com/harrison/annobatch/internal/summary"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-task statistics and gate state",
		Long: `Status reads the task summaries written so far and prints one row per task
with its outcome counts, failure rate and gate state, followed by totals,
the number of items still awaiting a retry and the data directory contents.

With --check the command exits non-zero when any task breached the gate.`,
		Args: cobra.NoArgs,
		RunE: statusCommand,
	}

	cmd.Flags().String("stage", "", "Stage whose summaries are shown")
	cmd.Flags().Float64("threshold", 0, "Failure rate gate (default: config, 0.5)")
	cmd.Flags().Bool("check", false, "Exit non-zero when any task breached the gate")
	cmd.Flags().Bool("no-data", false, "Skip scanning the data directory")

	return cmd
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stage, _ := cmd.Flags().GetString("stage")
	out := cmd.OutOrStdout()
	warn := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	paths, err := summary.Glob(cfg.SummaryDir, stage)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var summaries []*models.TaskSummary
	for _, p := range paths {
		s, err := summary.Read(p)
		if err != nil {
			warn.LogWarn(fmt.Sprintf("skipping summary %s: %v", p, err))
			continue
		}
		summaries = append(summaries, s)
	}

	rows := report.StatusRows(summaries, cfg.FailureThreshold)
	if len(rows) == 0 {
		fmt.Fprintf(out, "No task summaries in %s\n", cfg.SummaryDir)
	} else {
		report.WriteStatusTable(out, rows, cfg.FailureThreshold, stdoutIsTerminal(cmd))
	}

	var total models.Statistics
	breached := 0
	for _, row := range rows {
		total.Merge(row.Statistics)
		if row.Breached {
			breached++
		}
	}
	fmt.Fprintf(out, "\n%s\n", logger.FormatStatistics(total))
	fmt.Fprintf(out, "Overall failure rate: %.1f%% (threshold %.1f%%)\n",
		executor.FailureRate(total)*100, cfg.FailureThreshold*100)
	fmt.Fprintf(out, "Awaiting retry: %d\n", len(aggregate.Outstanding(paths, nil)))

	if cfg.History.Enabled {
		writeLastMerge(cmd.Context(), out, cfg, stage, warn)
	}
	if noData, _ := cmd.Flags().GetBool("no-data"); !noData {
		writeDataStats(out, cfg, stage)
	}

	if check, _ := cmd.Flags().GetBool("check"); check && breached > 0 {
		return fmt.Errorf("%w: %d task(s)", ErrGateBreached, breached)
	}
	return nil
}

// writeLastMerge prints the most recent merge recorded in the history store.
// A missing database is not an error: nothing has been merged yet.
func writeLastMerge(ctx context.Context, w io.Writer, cfg *config.Config, stage string, warn logger.Logger) {
	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		warn.LogWarn("history: " + err.Error())
		return
	}
	defer store.Close()

	m, err := store.LatestMerge(ctx, stage)
	if err != nil {
		warn.LogWarn("history: " + err.Error())
		return
	}
	if m == nil {
		return
	}
	fmt.Fprintf(w, "Last merge: %s, %d task(s), %d item(s); %d complete, %d partial, %d absent (%s)\n",
		m.RecordedAt.Local().Format(time.DateTime), m.Tasks, m.TotalItems,
		m.Complete, m.Partial, m.Absent, m.ReportPath)
}

// writeDataStats summarizes the data directory layout.
func writeDataStats(w io.Writer, cfg *config.Config, stage string) {
	info, err := os.Stat(cfg.DataDir)
	if err != nil || !info.IsDir() {
		return
	}
	items, err := discovery.Scan(cfg.DataDir, discovery.ScanOptions{Ext: cfg.Stage(stage).Ext})
	if err != nil {
		fmt.Fprintf(w, "Data: %s unreadable: %v\n", cfg.DataDir, err)
		return
	}
	organisms := make(map[string]bool)
	releases := make(map[int]bool)
	for _, item := range items {
		organisms[item.Organism] = true
		releases[item.Release] = true
	}
	fmt.Fprintf(w, "Data: %s, %d file(s), %d organism(s), %d release(s)\n",
		cfg.DataDir, len(items), len(organisms), len(releases))
}
