package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// StageConfig holds per-stage overrides. Zero values fall back to the globals.
type StageConfig struct {
	// MaxParallel overrides the global pool size for this stage
	MaxParallel int `yaml:"max_parallel"`

	// ItemTimeout overrides the global per-item timeout
	ItemTimeout time.Duration `yaml:"-"`

	// Command is the argv template run for each item
	Command []string `yaml:"command"`

	// SkipIfExists is a glob template; items with a match are skipped
	SkipIfExists string `yaml:"skip_if_exists"`

	// NotFoundExitCode is the tool exit code that means "input not found"
	NotFoundExitCode int `yaml:"not_found_exit_code"`

	// Ext is the file extension discovered under the data directory
	Ext string `yaml:"ext"`

	// Preflight lists shell commands that must succeed before a share runs
	Preflight []string `yaml:"preflight"`
}

// HistoryConfig represents the run history database configuration
type HistoryConfig struct {
	// Enabled records partitions and merges in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the sqlite database
	DBPath string `yaml:"db_path"`
}

// MetricsConfig represents the prometheus textfile export configuration
type MetricsConfig struct {
	// Enabled writes a metrics textfile after every partition
	Enabled bool `yaml:"enabled"`

	// Textfile is the output path; "{task_id}" is replaced with the task id
	Textfile string `yaml:"textfile"`
}

// RetryConfig bounds in-process retries of failed items
type RetryConfig struct {
	// Attempts is the total number of attempts per item
	Attempts int `yaml:"attempts"`

	// Delay is the pause between retry rounds
	Delay time.Duration `yaml:"-"`
}

// Config represents annobatch configuration options
type Config struct {
	// MaxParallel is the number of items in flight per partition
	MaxParallel int `yaml:"max_parallel"`

	// ItemTimeout is the per-item deadline (0 disables)
	ItemTimeout time.Duration `yaml:"-"`

	// ProgressEvery emits a progress line every N completed items
	ProgressEvery int `yaml:"progress_every"`

	// FailureThreshold is the failure rate above which a partition exits non-zero
	FailureThreshold float64 `yaml:"failure_threshold"`

	// SummaryDir is where summary_task_<id>.json files are written
	SummaryDir string `yaml:"summary_dir"`

	// DataDir is the release_<N>/<organism> tree scanned for items
	DataDir string `yaml:"data_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written
	LogDir string `yaml:"log_dir"`

	// Stages maps stage names to overrides
	Stages map[string]StageConfig `yaml:"stages"`

	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Retry   RetryConfig   `yaml:"retry"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxParallel:      5,
		ItemTimeout:      300 * time.Second,
		ProgressEvery:    10,
		FailureThreshold: 0.5,
		SummaryDir:       "summaries",
		DataDir:          "data",
		LogLevel:         "info",
		LogDir:           ".annobatch/logs",
		Stages:           map[string]StageConfig{},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".annobatch/history.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Textfile: "metrics/annobatch_task_{task_id}.prom",
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    10 * time.Second,
		},
	}
}

// yamlStage mirrors StageConfig with durations as strings
type yamlStage struct {
	MaxParallel      int      `yaml:"max_parallel"`
	ItemTimeout      string   `yaml:"item_timeout"`
	Command          []string `yaml:"command"`
	SkipIfExists     string   `yaml:"skip_if_exists"`
	NotFoundExitCode int      `yaml:"not_found_exit_code"`
	Ext              string   `yaml:"ext"`
	Preflight        []string `yaml:"preflight"`
}

// yamlConfig uses pointers for sections and flags so that explicit false/zero
// values in the file are distinguishable from absent keys
type yamlConfig struct {
	MaxParallel      int                  `yaml:"max_parallel"`
	ItemTimeout      string               `yaml:"item_timeout"`
	ProgressEvery    int                  `yaml:"progress_every"`
	FailureThreshold *float64             `yaml:"failure_threshold"`
	SummaryDir       string               `yaml:"summary_dir"`
	DataDir          string               `yaml:"data_dir"`
	LogLevel         string               `yaml:"log_level"`
	LogDir           string               `yaml:"log_dir"`
	Stages           map[string]yamlStage `yaml:"stages"`
	History          *struct {
		Enabled *bool  `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"history"`
	Metrics *struct {
		Enabled  *bool  `yaml:"enabled"`
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
	Retry *struct {
		Attempts int    `yaml:"attempts"`
		Delay    string `yaml:"delay"`
	} `yaml:"retry"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if y.MaxParallel != 0 {
		cfg.MaxParallel = y.MaxParallel
	}
	if y.ItemTimeout != "" {
		d, err := parseDuration("item_timeout", y.ItemTimeout)
		if err != nil {
			return nil, err
		}
		cfg.ItemTimeout = d
	}
	if y.ProgressEvery != 0 {
		cfg.ProgressEvery = y.ProgressEvery
	}
	if y.FailureThreshold != nil {
		cfg.FailureThreshold = *y.FailureThreshold
	}
	if y.SummaryDir != "" {
		cfg.SummaryDir = y.SummaryDir
	}
	if y.DataDir != "" {
		cfg.DataDir = y.DataDir
	}
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}
	if y.LogDir != "" {
		cfg.LogDir = y.LogDir
	}

	for name, s := range y.Stages {
		stage := StageConfig{
			MaxParallel:      s.MaxParallel,
			Command:          s.Command,
			SkipIfExists:     s.SkipIfExists,
			NotFoundExitCode: s.NotFoundExitCode,
			Ext:              s.Ext,
			Preflight:        s.Preflight,
		}
		if s.ItemTimeout != "" {
			d, err := parseDuration("stages."+name+".item_timeout", s.ItemTimeout)
			if err != nil {
				return nil, err
			}
			stage.ItemTimeout = d
		}
		cfg.Stages[name] = stage
	}

	if h := y.History; h != nil {
		if h.Enabled != nil {
			cfg.History.Enabled = *h.Enabled
		}
		if h.DBPath != "" {
			cfg.History.DBPath = h.DBPath
		}
	}
	if m := y.Metrics; m != nil {
		if m.Enabled != nil {
			cfg.Metrics.Enabled = *m.Enabled
		}
		if m.Textfile != "" {
			cfg.Metrics.Textfile = m.Textfile
		}
	}
	if r := y.Retry; r != nil {
		if r.Attempts != 0 {
			cfg.Retry.Attempts = r.Attempts
		}
		if r.Delay != "" {
			d, err := parseDuration("retry.delay", r.Delay)
			if err != nil {
				return nil, err
			}
			cfg.Retry.Delay = d
		}
	}

	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format %q: %w", key, value, err)
	}
	return d, nil
}

// LoadConfigFromDir loads configuration from .annobatch/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".annobatch", "config.yaml"))
}

// Stage returns the effective settings for the named stage: the stage's own
// overrides with unset fields taken from the global configuration.
func (c *Config) Stage(name string) StageConfig {
	s := c.Stages[name]
	if s.MaxParallel == 0 {
		s.MaxParallel = c.MaxParallel
	}
	if s.ItemTimeout == 0 {
		s.ItemTimeout = c.ItemTimeout
	}
	return s
}

// StageNames returns the configured stage names in sorted order.
func (c *Config) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(maxParallel *int, itemTimeout *time.Duration, progressEvery *int, threshold *float64, summaryDir *string, logDir *string) {
	if maxParallel != nil {
		c.MaxParallel = *maxParallel
	}
	if itemTimeout != nil {
		c.ItemTimeout = *itemTimeout
	}
	if progressEvery != nil {
		c.ProgressEvery = *progressEvery
	}
	if threshold != nil {
		c.FailureThreshold = *threshold
	}
	if summaryDir != nil {
		c.SummaryDir = *summaryDir
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
}

// Validate validates the configuration values
// Returns an error wrapping ErrInvalid if any values are invalid
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("%w: max_parallel must be >= 1, got %d", ErrInvalid, c.MaxParallel)
	}
	if c.ItemTimeout < 0 {
		return fmt.Errorf("%w: item_timeout must be >= 0, got %v", ErrInvalid, c.ItemTimeout)
	}
	if c.ProgressEvery < 1 {
		return fmt.Errorf("%w: progress_every must be >= 1, got %d", ErrInvalid, c.ProgressEvery)
	}
	if c.FailureThreshold < 0 || c.FailureThreshold > 1 {
		return fmt.Errorf("%w: failure_threshold must be within [0, 1], got %v", ErrInvalid, c.FailureThreshold)
	}
	if c.SummaryDir == "" {
		return fmt.Errorf("%w: summary_dir cannot be empty", ErrInvalid)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("%w: invalid log_level %q, must be one of: trace, debug, info, warn, error", ErrInvalid, c.LogLevel)
	}

	for _, name := range c.StageNames() {
		s := c.Stages[name]
		if s.MaxParallel < 0 {
			return fmt.Errorf("%w: stages.%s.max_parallel must be >= 0, got %d", ErrInvalid, name, s.MaxParallel)
		}
		if s.ItemTimeout < 0 {
			return fmt.Errorf("%w: stages.%s.item_timeout must be >= 0, got %v", ErrInvalid, name, s.ItemTimeout)
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("%w: history.db_path cannot be empty when history is enabled", ErrInvalid)
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return fmt.Errorf("%w: metrics.textfile cannot be empty when metrics are enabled", ErrInvalid)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("%w: retry.attempts must be >= 1, got %d", ErrInvalid, c.Retry.Attempts)
	}

	return nil
}
