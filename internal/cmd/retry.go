package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/aggregate"
	"github.com/harrison/annobatch/internal/config"
	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/logger"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/partition"
	"github.com/harrison/annobatch/internal/summary"
)

// retryTaskBase is the first task id used for retry summaries.
const retryTaskBase = 1000

// NewRetryCommand creates the retry command
func NewRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry --from <summary-dir|merged_summary.json> [flags] [-- command args...]",
		Short: "Rerun items whose last outcome was failed, timeout or error",
		Long: `Retry collects the retryable items and runs them again, up to --attempts
times each with --delay between rounds. not_found is final and never retried.

--from may be a summary directory, in which case each item's latest outcome
across all task summaries decides, or a merged report, in which case the
organism/release pairs it lists as failed are matched against the items
discovered from --items (or the data dir) to recover their payloads.

The outcome is written as a summary at --task-id, by default the first free
id from 1000 up, so a later merge sees it next to the original tasks.`,
		RunE: retryCommand,
	}

	addItemFlags(cmd)
	addExecFlags(cmd)
	cmd.Flags().String("from", "", "Summary directory or merged report to take failures from (default: summary dir)")
	cmd.Flags().Int("attempts", 0, "Attempts per item, including the first (default: config, 3)")
	cmd.Flags().Duration("delay", 0, "Pause between attempts (default: config, 10s)")
	cmd.Flags().Int("task-id", -1, "Task id of the retry summary (default: next free id >= 1000)")
	cmd.Flags().Bool("dry-run", false, "List the items that would be retried")

	return cmd
}

func retryCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stageName, stage := stageFor(cmd, cfg)

	from, _ := cmd.Flags().GetString("from")
	if from == "" {
		from = cfg.SummaryDir
	}
	items, err := retryItems(cmd, cfg, stage, stageName, from)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(out, "%d item(s) to retry from %s\n", len(items), from)
		for _, item := range items {
			fmt.Fprintf(out, "  %s\n", item.Key())
		}
		return nil
	}
	if len(items) == 0 {
		fmt.Fprintf(out, "Nothing to retry in %s\n", from)
		return nil
	}

	runner, err := buildRunner(cmd, args, stage)
	if err != nil {
		return err
	}

	taskID, _ := cmd.Flags().GetInt("task-id")
	if taskID < 0 {
		taskID, err = summary.NextFreeTaskID(cfg.SummaryDir, stageName, retryTaskBase)
		if err != nil {
			return err
		}
	}

	policy := executor.RetryPolicy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay}
	if cmd.Flags().Changed("attempts") {
		policy.Attempts, _ = cmd.Flags().GetInt("attempts")
	}
	if cmd.Flags().Changed("delay") {
		policy.Delay, _ = cmd.Flags().GetDuration("delay")
	}

	log, closeLog, err := newLogger(cmd, cfg, fmt.Sprintf("retry%d", taskID))
	if err != nil {
		return err
	}
	defer closeLog()
	log.LogInfo(fmt.Sprintf("Retrying %d item(s) from %s as task %d, %d attempt(s)",
		len(items), from, taskID, policy.Attempts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := &partitionJob{
		cfg:       cfg,
		stageName: stageName,
		stage:     stage,
		array:     partition.Array{TaskID: taskID, TaskCount: 1},
		log:       log,
		run: func(ctx context.Context, e *executor.Executor) []models.TaskResult {
			return e.Retry(ctx, items, runner, policy)
		},
	}
	sum, _, err := job.execute(ctx)
	if err != nil {
		return err
	}
	return gateError(sum, cfg.FailureThreshold)
}

// retryItems resolves --from into the items to rerun.
func retryItems(cmd *cobra.Command, cfg *config.Config, stage config.StageConfig, stageName, from string) ([]models.WorkItem, error) {
	info, err := os.Stat(from)
	if err != nil {
		return nil, fmt.Errorf("retry source: %w", err)
	}
	warn := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	if info.IsDir() {
		paths, err := summary.Glob(from, stageName)
		if err != nil {
			return nil, err
		}
		return aggregate.Outstanding(paths, warn), nil
	}

	report, err := aggregate.ReadReport(from)
	if err != nil {
		return nil, err
	}
	candidates := report.RetryCandidates()
	if len(candidates) == 0 {
		return nil, nil
	}
	discovered, _, err := loadItems(cmd, cfg, stage)
	if err != nil {
		warn.LogWarn(fmt.Sprintf("%v; retrying without payloads", err))
		return candidates, nil
	}
	return aggregate.MatchItems(candidates, discovered), nil
}
