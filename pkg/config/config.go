package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
)

// Config represents the application configuration
type Config struct {
	Sync        SyncConfig        `yaml:"sync"`
	Performance PerformanceConfig `yaml:"performance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Output      OutputConfig      `yaml:"output"`
	Lock        LockConfig        `yaml:"lock"`
	Watch       WatchConfig       `yaml:"watch"`
}

// SyncConfig holds mirror-related settings
type SyncConfig struct {
	// Interval is offered as the default answer when prompting (seconds, 0 = none)
	Interval   float64  `yaml:"interval"`
	Comparison string   `yaml:"comparison"` // "sha256" or "md5"
	Exclude    []string `yaml:"exclude"`    // doublestar patterns on relative paths
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	BufferSize     int    `yaml:"buffer_size"`
	BandwidthLimit string `yaml:"bandwidth_limit"` // e.g. "10MB", empty = unlimited
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Format     string `yaml:"format"`   // "text" or "json"
	Level      string `yaml:"level"`    // "debug", "info", "warn", "error"
	MaxSize    string `yaml:"max_size"` // rotate after this many bytes, empty = never
	MaxBackups int    `yaml:"max_backups"`
	Console    bool   `yaml:"console"` // mirror log lines to stdout
}

// OutputConfig holds terminal output settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // Pass summary: "none", "human" or "json"
	Progress bool   `yaml:"progress"` // Show a progress bar per pass
	Quiet    bool   `yaml:"quiet"`    // No console log lines
}

// LockConfig controls the cross-process replica lock
type LockConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WatchConfig controls change-triggered passes
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Debounce string `yaml:"debounce"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Comparison: string(compare.SHA256),
			Exclude:    []string{},
		},
		Performance: PerformanceConfig{
			BufferSize: 65536,
		},
		Logging: LoggingConfig{
			Format:     string(logging.FormatText),
			Level:      "info",
			MaxSize:    "",
			MaxBackups: 3,
			Console:    true,
		},
		Output: OutputConfig{
			Format:   "none",
			Progress: false,
			Quiet:    false,
		},
		Lock: LockConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "2s",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Sync.Interval < 0 {
		return &models.ValidationError{
			Field:   "sync.interval",
			Message: "must not be negative",
		}
	}

	if _, err := compare.ParseAlgorithm(c.Sync.Comparison); err != nil {
		return &models.ValidationError{
			Field:   "sync.comparison",
			Message: "must be 'sha256' or 'md5'",
		}
	}

	for _, pattern := range c.Sync.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return &models.ValidationError{
				Field:   "sync.exclude",
				Message: fmt.Sprintf("invalid pattern %q", pattern),
			}
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := ratelimit.ParseLimit(c.Performance.BandwidthLimit); err != nil {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: err.Error(),
		}
	}

	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'text' or 'json'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if _, err := c.MaxLogSize(); err != nil {
		return &models.ValidationError{
			Field:   "logging.max_size",
			Message: err.Error(),
		}
	}

	if c.Output.Format == "progress" {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "use output.progress to enable the progress bar",
		}
	}
	if _, err := output.New(c.Output.Format); err != nil {
		return err
	}

	if c.Logging.MaxBackups < 0 {
		return &models.ValidationError{
			Field:   "logging.max_backups",
			Message: "must not be negative",
		}
	}

	if _, err := c.WatchDebounce(); err != nil {
		return &models.ValidationError{
			Field:   "watch.debounce",
			Message: err.Error(),
		}
	}

	return nil
}

// MaxLogSize returns the rotation threshold in bytes, 0 when unset
func (c *Config) MaxLogSize() (int64, error) {
	if c.Logging.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Logging.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", c.Logging.MaxSize, err)
	}
	return int64(n), nil
}

// WatchDebounce returns the quiet period before a change-triggered pass
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", c.Watch.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", c.Watch.Debounce)
	}
	return d, nil
}
