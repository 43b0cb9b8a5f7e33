package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/history"
	"github.com/harrison/annobatch/internal/report"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded partitions or the outcomes of one item",
		Long: `History reads the run history database and prints the most recent
partitions of a stage, newest first.

With --item organism@release it prints every recorded outcome of that item
instead, oldest first, across the original runs and all retries.

--prune-before removes partitions and merges recorded longer ago than the
given duration before anything is printed.

Examples:
  annobatch history --stage gtf --limit 50
  annobatch history --item homo_sapiens@110
  annobatch history --prune-before 720h`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("stage", "", "Stage whose partitions are listed")
	cmd.Flags().Int("limit", 20, "Maximum number of partitions (0: all)")
	cmd.Flags().String("item", "", "Show the outcomes of one item (organism@release)")
	cmd.Flags().Duration("prune-before", 0, "Delete records older than this duration")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		fmt.Fprintf(out, "No history recorded in %s\n", cfg.History.DBPath)
		return nil
	}
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if age, _ := cmd.Flags().GetDuration("prune-before"); age > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d partition(s) older than %s\n", n, age)
	}

	if key, _ := cmd.Flags().GetString("item"); key != "" {
		organism, release, err := parseItemKey(key)
		if err != nil {
			return err
		}
		outcomes, err := store.ItemHistory(ctx, organism, release)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			fmt.Fprintf(out, "No outcomes recorded for %s\n", key)
			return nil
		}
		report.WriteItemHistoryTable(out, outcomes)
		return nil
	}

	stage, _ := cmd.Flags().GetString("stage")
	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.ListPartitions(ctx, stage, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No partitions recorded")
		return nil
	}
	report.WriteHistoryTable(out, records)
	return nil
}

// parseItemKey splits "organism@release".
func parseItemKey(key string) (string, int, error) {
	i := strings.LastIndex(key, "@")
	if i <= 0 {
		return "", 0, fmt.Errorf("item %q: expected organism@release", key)
	}
	release, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("item %q: invalid release: %w", key, err)
	}
	return key[:i], release, nil
}
