package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/partition"
	"github.com/harrison/annobatch/internal/report"
)

// NewPartitionCommand creates the partition command
func NewPartitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition --task-count N",
		Short: "Show how the work items split across array tasks",
		Long: `Partition enumerates the work items and prints, for every task id, the
half-open range of the share it owns and its size. Shares differ in size by
at most one; the first tasks take the remainder.

Useful to size a job array before submitting it.`,
		Args: cobra.NoArgs,
		RunE: partitionCommand,
	}

	addItemFlags(cmd)
	cmd.Flags().String("stage", "", "Stage whose item extension is used for directory discovery")
	cmd.Flags().Int("task-count", 0, "Number of array tasks (required)")
	_ = cmd.MarkFlagRequired("task-count")

	return cmd
}

func partitionCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stageName, _ := cmd.Flags().GetString("stage")
	taskCount, _ := cmd.Flags().GetInt("task-count")
	if err := partition.Validate(0, taskCount); err != nil {
		return err
	}

	items, source, err := loadItems(cmd, cfg, cfg.Stage(stageName))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d item(s) from %s across %d task(s)\n", len(items), source, taskCount)
	if taskCount > len(items) {
		fmt.Fprintf(out, "Tasks %d..%d receive no items\n", len(items), taskCount-1)
	}
	report.WritePartitionTable(out, len(items), taskCount, items)
	return nil
}
