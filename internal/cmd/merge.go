package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/aggregate"
	"github.com/harrison/annobatch/internal/config"
	"github.com/harrison/annobatch/internal/history"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/report"
)

// NewMergeCommand creates the merge command
func NewMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge task summaries into one coverage report",
		Long: `Merge reads every task summary of the stage in the summary directory and
writes merged_summary.json: summed statistics, per-release statistics and the
coverage of every organism across the observed releases.

Summaries that cannot be read are skipped with a warning and listed in the
report. Merging the same files always produces the same bytes, so merge can
run again after late or retried tasks finish.

Examples:
  annobatch merge
  annobatch merge --stage gtf --markdown coverage.md --html coverage.html`,
		Args: cobra.NoArgs,
		RunE: mergeCommand,
	}

	cmd.Flags().String("stage", "", "Stage whose summaries are merged")
	cmd.Flags().String("out", "", "Report path (default: <summary-dir>/[<stage>_]merged_summary.json)")
	cmd.Flags().String("markdown", "", "Also write a Markdown coverage report here")
	cmd.Flags().String("html", "", "Also write an HTML coverage report here")
	cmd.Flags().Bool("quiet", false, "Do not print the report tables")
	cmd.Flags().Bool("no-history", false, "Do not record this merge in the history database")

	return cmd
}

// MergedFileName returns the default report name for stage.
func MergedFileName(stage string) string {
	if stage == "" {
		return "merged_summary.json"
	}
	return stage + "_merged_summary.json"
}

func mergeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stage, _ := cmd.Flags().GetString("stage")

	log, closeLog, err := newLogger(cmd, cfg, "merge")
	if err != nil {
		return err
	}
	defer closeLog()

	r, err := aggregate.MergeDir(cfg.SummaryDir, stage, log)
	if err != nil {
		return err
	}
	if len(r.Tasks) == 0 {
		log.LogWarn(fmt.Sprintf("No usable summaries in %s", cfg.SummaryDir))
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(cfg.SummaryDir, MergedFileName(stage))
	}
	if err := aggregate.WriteReport(out, r); err != nil {
		return err
	}
	log.LogInfo(fmt.Sprintf("Merged %d task(s), %d item(s) into %s", len(r.Tasks), r.TotalItems, out))

	mdPath, _ := cmd.Flags().GetString("markdown")
	htmlPath, _ := cmd.Flags().GetString("html")
	if err := report.WriteCoverage(r, mdPath, htmlPath); err != nil {
		return err
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		report.WriteMergeTables(cmd.OutOrStdout(), r)
	}

	if cfg.History.Enabled {
		if err := recordMerge(cmd.Context(), cfg, r, out); err != nil {
			log.LogWarn("history: " + err.Error())
		}
	}
	return nil
}

func recordMerge(ctx context.Context, cfg *config.Config, r *models.MergedReport, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.RecordMerge(ctx, r, path)
	return err
}
