package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/internal/platform"
	"github.com/sdejongh/foldermirror/pkg/config"
)

// validateParams checks the run parameters before any pass starts and
// returns them with absolute, symlink-free paths. A missing replica is
// created. A missing source is accepted: each pass reports it until the
// folder shows up.
func validateParams(p Params) (Params, error) {
	for _, path := range []string{p.Source, p.Replica, p.LogFile} {
		if err := platform.ValidatePath(path); err != nil {
			return Params{}, err
		}
	}

	source, err := platform.Resolve(p.Source)
	if err != nil {
		return Params{}, fmt.Errorf("failed to resolve source path: %w", err)
	}
	info, err := os.Stat(source)
	if err != nil && !os.IsNotExist(err) {
		return Params{}, fmt.Errorf("failed to access source path: %w", err)
	} else if err == nil && !info.IsDir() {
		return Params{}, fmt.Errorf("source path is not a directory: %s", p.Source)
	}

	replica, err := platform.Resolve(p.Replica)
	if err != nil {
		return Params{}, fmt.Errorf("failed to resolve replica path: %w", err)
	}
	if err := platform.CheckDistinct(source, replica); err != nil {
		return Params{}, err
	}

	info, err = os.Stat(replica)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(replica, 0755); err != nil {
			return Params{}, fmt.Errorf("failed to create replica directory: %w", err)
		}
	} else if err != nil {
		return Params{}, fmt.Errorf("failed to access replica path: %w", err)
	} else if !info.IsDir() {
		return Params{}, fmt.Errorf("replica path exists but is not a directory: %s", p.Replica)
	}

	logFile, err := platform.Resolve(p.LogFile)
	if err != nil {
		return Params{}, fmt.Errorf("failed to resolve log file path: %w", err)
	}
	// The cleaner would delete it, or every pass would copy it
	if platform.IsWithin(replica, logFile) {
		return Params{}, fmt.Errorf("log file cannot be inside the replica directory: %s", p.LogFile)
	}
	if platform.IsWithin(source, logFile) {
		return Params{}, fmt.Errorf("log file cannot be inside the source directory: %s", p.LogFile)
	}

	return Params{
		Source:   source,
		Replica:  replica,
		LogFile:  logFile,
		Interval: p.Interval,
	}, nil
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// applyFlagsToConfig overrides config values with flags set on cmd
func applyFlagsToConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("comparison") {
		cfg.Sync.Comparison = mirrorFlags.Comparison
	}
	if flags.Changed("exclude") {
		cfg.Sync.Exclude = mirrorFlags.Exclude
	}
	if flags.Changed("bandwidth") {
		cfg.Performance.BandwidthLimit = mirrorFlags.Bandwidth
	}
	if flags.Changed("output") {
		cfg.Output.Format = mirrorFlags.Output
	}
	if flags.Changed("progress") {
		cfg.Output.Progress = mirrorFlags.Progress
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = mirrorFlags.LogFormat
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = mirrorFlags.LogLevel
	}
	if flags.Changed("watch") {
		cfg.Watch.Enabled = mirrorFlags.Watch
	}
	if mirrorFlags.NoLock {
		cfg.Lock.Enabled = false
	}

	if globalFlags.Verbose {
		cfg.Logging.Level = "debug"
	}

	// Quiet mode keeps the log file but silences the terminal
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
}
