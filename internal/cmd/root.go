package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for annobatch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annobatch",
		Short: "Partitioned batch execution for annotation pipelines",
		Long: `annobatch splits a list of work items (organism x release) into
contiguous shares, one per array task, and runs an external tool over each
item of its share with bounded parallelism and a per-item timeout.

Every task writes a JSON summary with per-item outcomes and statistics.
merge combines the summaries of all tasks into one report with per-release
statistics and organism coverage; retry reruns the retryable failures.

Configuration is loaded from $ANNOBATCH_HOME/config.yaml or --config.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: $ANNOBATCH_HOME/config.yaml)")
	cmd.PersistentFlags().String("summary-dir", "", "Directory for task summaries (default: config, summaries)")
	cmd.PersistentFlags().String("log-dir", "", "Directory for run logs (empty: config)")
	cmd.PersistentFlags().String("log-level", "", "trace, debug, info, warn or error")

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewRetryCommand())
	cmd.AddCommand(NewMergeCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewPartitionCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
