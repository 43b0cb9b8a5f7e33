package cmd

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/annobatch/internal/config"
	"github.com/harrison/annobatch/internal/display"
	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/partition"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the work items",
		Long: `Validate loads the configuration and the work items and reports:
  - Configuration errors (exit code 1)
  - Item counts per release and the number of organisms
  - Duplicate item keys, which make retries ambiguous
  - Stage commands whose executable is not on PATH
  - Stage preflight commands that fail (exit code 1)
  - The share sizes for --task-count, if given

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: validateCommand,
	}

	addItemFlags(cmd)
	cmd.Flags().String("stage", "", "Stage whose item extension is used for directory discovery")
	cmd.Flags().Int("task-count", 0, "Also check the split across this many tasks")

	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	enableColor := stdoutIsTerminal(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config: ok (max_parallel %d, item_timeout %s, threshold %.2f)\n",
		cfg.MaxParallel, cfg.ItemTimeout, cfg.FailureThreshold)

	for _, w := range stageWarnings(cfg) {
		w.Display(out, enableColor)
	}
	preflightFailures := runStagePreflights(cmd, cfg, out, enableColor)

	stageName, _ := cmd.Flags().GetString("stage")
	items, source, err := loadItems(cmd, cfg, cfg.Stage(stageName))
	if err != nil {
		return err
	}
	writeItemCounts(out, source, items)

	if len(items) == 0 {
		display.Warning{
			Title:      "No work items found in " + source,
			Suggestion: "Pass --items or set data_dir to a release_<N>/<organism>/ tree",
		}.Display(out, enableColor)
	}
	if dups := duplicateKeys(items); len(dups) > 0 {
		display.Warning{
			Title:      "Duplicate item keys",
			Message:    "Retries and history match items by key; later entries shadow earlier ones",
			Items:      dups,
			Suggestion: "Give every item a unique id",
		}.Display(out, enableColor)
	}

	if taskCount, _ := cmd.Flags().GetInt("task-count"); taskCount != 0 {
		if err := partition.Validate(0, taskCount); err != nil {
			return err
		}
		sizes := partition.Sizes(len(items), taskCount)
		fmt.Fprintf(out, "Split across %d task(s): largest share %d, smallest %d\n",
			taskCount, sizes[0], sizes[len(sizes)-1])
	}

	if preflightFailures > 0 {
		return fmt.Errorf("%w: %d command(s)", executor.ErrPreflightFailed, preflightFailures)
	}
	fmt.Fprintln(out, "Valid")
	return nil
}

// runStagePreflights runs every stage's preflight commands and prints a
// warning per failure. It returns the number of failed commands.
func runStagePreflights(cmd *cobra.Command, cfg *config.Config, out io.Writer, enableColor bool) int {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	failed := 0
	for _, name := range cfg.StageNames() {
		for _, r := range executor.RunPreflightWithResults(ctx, &executor.ShellCommandRunner{}, cfg.Stages[name].Preflight) {
			if r.Error == nil {
				fmt.Fprintf(out, "Preflight %s: %q ok (%s)\n", name, r.Command, r.Duration.Round(time.Millisecond))
				continue
			}
			failed++
			display.Warning{
				Title:   fmt.Sprintf("Stage %q preflight failed: %s", name, r.Command),
				Message: strings.TrimSpace(r.Output + " " + r.Error.Error()),
			}.Display(out, enableColor)
		}
	}
	return failed
}

// stageWarnings reports stages whose executable cannot be resolved.
func stageWarnings(cfg *config.Config) []display.Warning {
	var warnings []display.Warning
	for _, name := range cfg.StageNames() {
		s := cfg.Stages[name]
		if len(s.Command) == 0 {
			warnings = append(warnings, display.Warning{
				Title:      fmt.Sprintf("Stage %q has no command", name),
				Suggestion: "Set stages." + name + ".command or pass one after --",
			})
			continue
		}
		if _, err := exec.LookPath(s.Command[0]); err != nil {
			warnings = append(warnings, display.Warning{
				Title:   fmt.Sprintf("Stage %q command not found", name),
				Message: err.Error(),
				Items:   []string{s.Command[0]},
			})
		}
	}
	return warnings
}

func writeItemCounts(w io.Writer, source string, items []models.WorkItem) {
	perRelease := make(map[int]int)
	organisms := make(map[string]bool)
	for _, item := range items {
		perRelease[item.Release]++
		organisms[item.Organism] = true
	}
	releases := make([]int, 0, len(perRelease))
	for rel := range perRelease {
		releases = append(releases, rel)
	}
	sort.Ints(releases)

	fmt.Fprintf(w, "Items: %d from %s, %d organism(s), %d release(s)\n",
		len(items), source, len(organisms), len(releases))
	for _, rel := range releases {
		fmt.Fprintf(w, "  release %d: %d\n", rel, perRelease[rel])
	}
}

func duplicateKeys(items []models.WorkItem) []string {
	seen := make(map[string]int, len(items))
	for _, item := range items {
		seen[item.Key()]++
	}
	var dups []string
	for key, n := range seen {
		if n > 1 {
			dups = append(dups, key)
		}
	}
	sort.Strings(dups)
	return dups
}
