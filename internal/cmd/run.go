package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/partition"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command args...]",
		Short: "Run this array task's share of the work items",
		Long: `Run enumerates the work items, takes the contiguous share owned by this
array task and runs the command once per item with bounded parallelism.

The task is identified by --task-id/--task-count, or by ANNOBATCH_TASK_ID /
ANNOBATCH_TASK_COUNT, or by SLURM_ARRAY_TASK_ID / SLURM_ARRAY_TASK_COUNT.
Without any of them the whole list is processed as task 0 of 1.

Command arguments are templates: {organism}, {release}, {id} and
{payload.<key>} are substituted per item. Directory discovery sets the
payload keys input, dir and file.

A summary_task_<id>.json is always written, then the task exits non-zero
when the failure rate exceeds the threshold.

Examples:
  # Task 3 of 10 over a release directory tree
  annobatch run --items data --task-id 3 --task-count 10 -- \
    gffread {payload.input} -o out/{organism}_{release}.gtf

  # Stage command from the config, task taken from SLURM
  annobatch run --stage gtf

  # Show the share without running anything
  annobatch run --items items.jsonl --task-count 4 --task-id 1 --dry-run`,
		RunE: runCommand,
	}

	addItemFlags(cmd)
	addExecFlags(cmd)
	cmd.Flags().Int("task-id", -1, "Array task id (default: environment, 0)")
	cmd.Flags().Int("task-count", -1, "Array task count (default: environment, 1)")
	cmd.Flags().Bool("dry-run", false, "Print the share without running it")
	cmd.Flags().Bool("skip-preflight", false, "Do not run the stage preflight commands")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stageName, stage := stageFor(cmd, cfg)

	array, err := resolveArray(cmd)
	if err != nil {
		return err
	}

	items, source, err := loadItems(cmd, cfg, stage)
	if err != nil {
		return err
	}
	share, err := partition.Share(items, array.TaskID, array.TaskCount)
	if err != nil {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		printShare(cmd.OutOrStdout(), source, len(items), array, share)
		return nil
	}

	runner, err := buildRunner(cmd, args, stage)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if skip, _ := cmd.Flags().GetBool("skip-preflight"); !skip {
		if err := executor.RunPreflight(ctx, &executor.ShellCommandRunner{}, stage.Preflight); err != nil {
			return err
		}
	}

	log, closeLog, err := newLogger(cmd, cfg, fmt.Sprintf("task%d", array.TaskID))
	if err != nil {
		return err
	}
	defer closeLog()

	start, end := partition.Bounds(len(items), array.TaskID, array.TaskCount)
	log.LogInfo(fmt.Sprintf("Task %s: items [%d, %d) of %d from %s, %d in parallel",
		array, start, end, len(items), source, stage.MaxParallel))

	job := &partitionJob{
		cfg:       cfg,
		stageName: stageName,
		stage:     stage,
		array:     array,
		log:       log,
		run: func(ctx context.Context, e *executor.Executor) []models.TaskResult {
			return e.ExecuteOrdered(ctx, share, runner)
		},
	}
	sum, _, err := job.execute(ctx)
	if err != nil {
		return err
	}
	return gateError(sum, cfg.FailureThreshold)
}

func printShare(w io.Writer, source string, total int, array partition.Array, share []models.WorkItem) {
	start, end := partition.Bounds(total, array.TaskID, array.TaskCount)
	fmt.Fprintf(w, "Source: %s (%d items)\n", source, total)
	fmt.Fprintf(w, "Task %s: items [%d, %d), %d to run\n", array, start, end, len(share))
	for _, item := range share {
		fmt.Fprintf(w, "  %s\n", item.Key())
	}
}
