package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all agentq configuration
type Config struct {
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
	Status    StatusConfig    `mapstructure:"status" yaml:"status"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// QueueConfig controls where the task store lives and how claims are gated
type QueueConfig struct {
	// Root is the directory holding tasks/, results/ and state.json.
	// Relative paths resolve against the working directory.
	Root string `mapstructure:"root" yaml:"root"`
	// EnforceDependencies rejects claims whose dependencies have not completed (default: true)
	EnforceDependencies bool `mapstructure:"enforce_dependencies" yaml:"enforce_dependencies"`
}

// DispatchConfig controls the tasks a dispatch cycle creates
type DispatchConfig struct {
	// ScanSources lists the data sources, one scan task each
	ScanSources []string `mapstructure:"scan_sources" yaml:"scan_sources"`
}

// StatusConfig controls the status snapshot
type StatusConfig struct {
	// RecentCompleted is how many completed tasks the snapshot lists (default: 20)
	RecentCompleted int `mapstructure:"recent_completed" yaml:"recent_completed"`
	// StaleAfterMinutes flags running tasks older than this in the rendered view.
	// 0 disables the flag.
	StaleAfterMinutes int `mapstructure:"stale_after_minutes" yaml:"stale_after_minutes"`
	// Output is the default render format: "table", "json" or "yaml"
	Output string `mapstructure:"output" yaml:"output"`
}

// RetentionConfig controls the cleanup sweep
type RetentionConfig struct {
	// MaxAgeHours is the default age after which terminal records are removed (default: 72)
	MaxAgeHours int `mapstructure:"max_age_hours" yaml:"max_age_hours"`
	// IncludeResults also removes result files of the same age. Off by default
	// because result files keep satisfying dependency checks after their records
	// are swept.
	IncludeResults bool `mapstructure:"include_results" yaml:"include_results"`
}

// WorkerConfig controls the built-in worker loop
type WorkerConfig struct {
	// PollIntervalMs is the fallback polling interval when no file event arrives
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// Types is a glob matched against task types the worker will claim (default: "*")
	Types string `mapstructure:"types" yaml:"types"`
	// MaxWorkers lets "agentq work" grow a pool of concurrent runners up to
	// this size while the backlog lasts (default: 1, no pool)
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug.log is written under the queue root (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Root:                ".agentq",
			EnforceDependencies: true,
		},
		Dispatch: DispatchConfig{
			ScanSources: []string{"fred", "bls", "bea", "treasury"},
		},
		Status: StatusConfig{
			RecentCompleted:   20,
			StaleAfterMinutes: 60,
			Output:            "table",
		},
		Retention: RetentionConfig{
			MaxAgeHours:    72,
			IncludeResults: false,
		},
		Worker: WorkerConfig{
			PollIntervalMs: 2000,
			Types:          "*",
			MaxWorkers:     1,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// MaxAge returns the retention window as a duration
func (c *RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// StaleAfter returns the running-task staleness threshold as a duration
func (c *StatusConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// PollInterval returns the worker fallback polling interval as a duration
func (c *WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("queue.root", defaults.Queue.Root)
	viper.SetDefault("queue.enforce_dependencies", defaults.Queue.EnforceDependencies)

	viper.SetDefault("dispatch.scan_sources", defaults.Dispatch.ScanSources)

	viper.SetDefault("status.recent_completed", defaults.Status.RecentCompleted)
	viper.SetDefault("status.stale_after_minutes", defaults.Status.StaleAfterMinutes)
	viper.SetDefault("status.output", defaults.Status.Output)

	viper.SetDefault("retention.max_age_hours", defaults.Retention.MaxAgeHours)
	viper.SetDefault("retention.include_results", defaults.Retention.IncludeResults)

	viper.SetDefault("worker.poll_interval_ms", defaults.Worker.PollIntervalMs)
	viper.SetDefault("worker.types", defaults.Worker.Types)
	viper.SetDefault("worker.max_workers", defaults.Worker.MaxWorkers)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration does not validate
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentq"
	}
	return filepath.Join(home, ".config", "agentq")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
