package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harrison/annobatch/internal/config"
	"github.com/harrison/annobatch/internal/discovery"
	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/history"
	"github.com/harrison/annobatch/internal/logger"
	"github.com/harrison/annobatch/internal/metrics"
	"github.com/harrison/annobatch/internal/models"
	"github.com/harrison/annobatch/internal/partition"
	"github.com/harrison/annobatch/internal/summary"
)

// ErrGateBreached is returned after a partition whose failure rate exceeded the
// threshold has written its summary. main turns it into exit status 1.
var ErrGateBreached = errors.New("failure rate above threshold")

// loadConfig resolves --config, then applies the execution flags a command
// defines and changed, then validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	var maxParallel, progressEvery *int
	var timeout *time.Duration
	var threshold *float64
	var summaryDir, logDir *string

	if flags.Lookup("max-parallel") != nil && flags.Changed("max-parallel") {
		v, _ := flags.GetInt("max-parallel")
		maxParallel = &v
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		v, _ := flags.GetDuration("timeout")
		timeout = &v
	}
	if flags.Lookup("progress-every") != nil && flags.Changed("progress-every") {
		v, _ := flags.GetInt("progress-every")
		progressEvery = &v
	}
	if flags.Lookup("threshold") != nil && flags.Changed("threshold") {
		v, _ := flags.GetFloat64("threshold")
		threshold = &v
	}
	if flags.Changed("summary-dir") {
		v, _ := flags.GetString("summary-dir")
		summaryDir = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		logDir = &v
	}
	cfg.MergeWithFlags(maxParallel, timeout, progressEvery, threshold, summaryDir, logDir)

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Lookup("no-history") != nil {
		if off, _ := flags.GetBool("no-history"); off {
			cfg.History.Enabled = false
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the console logger (stderr) and, when a log directory is
// configured, a run log file tagged with tag. The returned func closes the file.
func newLogger(cmd *cobra.Command, cfg *config.Config, tag string) (logger.Logger, func(), error) {
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.LogDir == "" {
		return console, func() {}, nil
	}
	file, err := logger.NewFileLogger(cfg.LogDir, tag, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger.NewMultiLogger(console, file), func() { file.Close() }, nil
}

// resolveArray reads --task-id/--task-count, falling back to the array
// environment variables.
func resolveArray(cmd *cobra.Command) (partition.Array, error) {
	v := viper.New()
	if f := cmd.Flags().Lookup("task-id"); f != nil {
		_ = v.BindPFlag("task_id", f)
	}
	if f := cmd.Flags().Lookup("task-count"); f != nil {
		_ = v.BindPFlag("task_count", f)
	}
	return partition.ResolveArray(v)
}

// addItemFlags registers the discovery flags shared by run, retry, partition
// and validate.
func addItemFlags(cmd *cobra.Command) {
	cmd.Flags().String("items", "", "Manifest file (.json, .jsonl, .yaml) or data directory (default: data_dir from config)")
	cmd.Flags().Int("release", 0, "Only items of this release")
	cmd.Flags().Bool("normalize", false, "Normalize organism names (lowercase, non-alphanumerics to _)")
}

// loadItems enumerates the work items for stage from --items or the data dir.
func loadItems(cmd *cobra.Command, cfg *config.Config, stage config.StageConfig) ([]models.WorkItem, string, error) {
	source, _ := cmd.Flags().GetString("items")
	if source == "" {
		source = cfg.DataDir
	}
	release, _ := cmd.Flags().GetInt("release")
	normalize, _ := cmd.Flags().GetBool("normalize")

	items, err := discovery.Load(source, discovery.ScanOptions{Ext: stage.Ext, Release: release, Normalize: normalize})
	if err != nil {
		return nil, source, fmt.Errorf("failed to load items: %w", err)
	}
	return items, source, nil
}

// addExecFlags registers the executor flags shared by run and retry.
func addExecFlags(cmd *cobra.Command) {
	cmd.Flags().String("stage", "", "Stage name; selects stage config and prefixes summary files")
	cmd.Flags().Int("max-parallel", 0, "Items in flight at once (default: config, 5)")
	cmd.Flags().Duration("timeout", 0, "Per-item timeout, e.g. 5m (default: config, 300s)")
	cmd.Flags().Int("progress-every", 0, "Progress line every N completed items (default: 10)")
	cmd.Flags().Float64("threshold", 0, "Failure rate above which the task exits non-zero (default: 0.5)")
	cmd.Flags().Int("not-found-exit-code", 0, "Tool exit code meaning input not found (0 disables)")
	cmd.Flags().String("skip-if-exists", "", "Glob template; items with a match are skipped")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
}

// stageFor returns the stage settings with changed --max-parallel and
// --timeout flags taking precedence over per-stage overrides.
func stageFor(cmd *cobra.Command, cfg *config.Config) (string, config.StageConfig) {
	name, _ := cmd.Flags().GetString("stage")
	stage := cfg.Stage(name)
	if cmd.Flags().Changed("max-parallel") {
		stage.MaxParallel = cfg.MaxParallel
	}
	if cmd.Flags().Changed("timeout") {
		stage.ItemTimeout = cfg.ItemTimeout
	}
	return name, stage
}

// buildRunner takes the command after "--", or the stage's configured command.
func buildRunner(cmd *cobra.Command, args []string, stage config.StageConfig) (*executor.CommandRunner, error) {
	argv := stage.Command
	if dash := cmd.ArgsLenAtDash(); dash >= 0 && dash < len(args) {
		argv = args[dash:]
	} else if len(args) > 0 {
		argv = args
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command: pass one after -- or set stages.<name>.command in the config")
	}

	r := &executor.CommandRunner{
		Command:          argv,
		SkipIfExists:     stage.SkipIfExists,
		NotFoundExitCode: stage.NotFoundExitCode,
	}
	if cmd.Flags().Changed("not-found-exit-code") {
		r.NotFoundExitCode, _ = cmd.Flags().GetInt("not-found-exit-code")
	}
	if cmd.Flags().Changed("skip-if-exists") {
		r.SkipIfExists, _ = cmd.Flags().GetString("skip-if-exists")
	}
	return r, nil
}

// partitionJob is everything needed to run one share and persist its summary.
type partitionJob struct {
	cfg       *config.Config
	stageName string
	stage     config.StageConfig
	array     partition.Array
	log       logger.Logger
	// run executes the share with the configured executor.
	run func(ctx context.Context, e *executor.Executor) []models.TaskResult
}

// execute runs the job, writes the summary, then records metrics and history.
// Metrics and history failures are logged, never fatal: the summary is the
// artifact that matters.
func (j *partitionJob) execute(ctx context.Context) (*models.TaskSummary, string, error) {
	var obs *metrics.Metrics
	if j.cfg.Metrics.Enabled {
		obs = metrics.New(j.stageName)
	}

	e := executor.New(j.stage.MaxParallel, j.stage.ItemTimeout)
	e.ProgressEvery = j.cfg.ProgressEvery
	e.Progress = j.log.LogProgress
	e.Logger = j.log
	observers := executor.Observers{executor.NewAnomalyMonitor(executor.AnomalyConfig{}, func(a executor.Anomaly) {
		j.log.LogWarn("Anomaly: " + a.String())
	})}
	if obs != nil {
		observers = append(observers, obs)
	}
	e.Observer = observers

	start := time.Now()
	results := j.run(ctx, e)
	end := time.Now()

	w := summary.NewWriter(j.cfg.SummaryDir, j.stageName)
	path, sum, err := w.Write(j.array.TaskID, j.array.TaskCount, start, end, results)
	if err != nil {
		return nil, "", err
	}
	j.log.LogSummary(sum, j.cfg.FailureThreshold)
	j.log.LogInfo("Summary written to " + path)

	if obs != nil {
		obs.ObserveSummary(sum, j.cfg.FailureThreshold)
		textfile := metrics.TextfilePath(j.cfg.Metrics.Textfile, j.stageName, j.array.TaskID)
		if err := obs.WriteTextfile(textfile); err != nil {
			j.log.LogWarn(err.Error())
		}
	}

	if j.cfg.History.Enabled {
		if err := recordPartition(ctx, j.cfg, sum, path); err != nil {
			j.log.LogWarn("history: " + err.Error())
		}
	}
	return sum, path, nil
}

func recordPartition(ctx context.Context, cfg *config.Config, sum *models.TaskSummary, path string) error {
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.RecordPartition(ctx, sum, path,
		executor.FailureRate(sum.Statistics), executor.Breaches(sum.Statistics, cfg.FailureThreshold))
	return err
}

func gateError(sum *models.TaskSummary, threshold float64) error {
	if !executor.Breaches(sum.Statistics, threshold) {
		return nil
	}
	return fmt.Errorf("%w: task %d failure rate %.1f%% > %.1f%%", ErrGateBreached,
		sum.TaskID, executor.FailureRate(sum.Statistics)*100, threshold*100)
}

func stdoutIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && logger.IsTerminal(f)
}
