package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/internal/lock"
	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/config"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/mirror"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/scheduler"
	"github.com/sdejongh/foldermirror/pkg/storage"
	"github.com/sdejongh/foldermirror/pkg/watch"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewRootCommand creates the foldermirror command tree
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foldermirror [source replica logfile interval]",
		Short: "Keep a replica folder an exact copy of a source folder",
		Long: `foldermirror periodically makes a replica directory an identical copy of a
source directory: missing and changed files are copied, files and folders that
no longer exist in the source are deleted. Files are compared by content.

Without the four positional arguments the values are asked for interactively.
The interval is a positive number of seconds. Flags go before the positional
arguments.`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runMirror,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags go before the positionals so an interval such as "-1" reaches
	// the interval check instead of the flag parser
	cmd.Flags().SetInterspersed(false)
	AddGlobalFlags(cmd)
	addMirrorFlags(cmd)

	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func runMirror(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagsToConfig(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	params, err := collectParams(cmd, args, cfg)
	if err != nil {
		return err
	}
	if params, err = validateParams(params); err != nil {
		return err
	}

	logger, err := createLogger(cmd.OutOrStdout(), params.LogFile, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	if _, err := os.Stat(params.Source); os.IsNotExist(err) {
		logger.Warn(ctx, fmt.Sprintf("Source folder does not exist: %s", params.Source), nil)
	}

	if cfg.Lock.Enabled {
		replicaLock := lock.New(params.Replica)
		if err := replicaLock.Acquire(); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return fmt.Errorf("another foldermirror process is mirroring into %s (lock file %s)", params.Replica, replicaLock.Path())
			}
			return err
		}
		defer replicaLock.Release()
	}

	orchestrator, err := newOrchestrator(ctx, cmd.OutOrStdout(), params, cfg, logger)
	if err != nil {
		return err
	}

	if mirrorFlags.Once {
		report := orchestrator.Run(ctx)
		if code := report.Status.ExitCode(); code != 0 {
			return &ExitError{Code: code, Err: fmt.Errorf("pass finished with status %s", report.Status)}
		}
		return nil
	}

	sched, err := scheduler.New(orchestrator, params.Interval, logger)
	if err != nil {
		return err
	}

	if cfg.Watch.Enabled {
		if err := startWatch(ctx, params.Source, cfg, sched, logger); err != nil {
			return err
		}
	}

	if !cfg.Output.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Synchronization started. Interval: %s seconds\n", formatSeconds(params.Interval))
	}
	logger.Info(ctx, "Synchronization started.", logging.Fields{
		"source":   params.Source,
		"replica":  params.Replica,
		"interval": params.Interval.String(),
	})

	err = sched.Start(ctx)
	logger.Info(context.Background(), "Synchronization stopped.", nil)
	return err
}

// collectParams takes the four positionals or prompts for them
func collectParams(cmd *cobra.Command, args []string, cfg *config.Config) (Params, error) {
	if len(args) == 4 {
		return paramsFromArgs(args)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, usageLine)

	params, err := NewPrompter(cmd.InOrStdin(), out).Params(cfg.Sync.Interval)
	if err != nil {
		return Params{}, err
	}
	return params, nil
}

// createLogger tees the log file and, unless quiet, the console
func createLogger(console io.Writer, logFile string, cfg *config.Config) (logging.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	maxSize, err := cfg.MaxLogSize()
	if err != nil {
		return nil, err
	}
	level := logging.ParseLevel(cfg.Logging.Level)

	fileLogger, err := logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       logFile,
		Format:     format,
		Level:      level,
		MaxSize:    maxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Output.Quiet || !cfg.Logging.Console {
		return fileLogger, nil
	}

	// The progress bar owns the terminal; only problems are printed over it
	consoleLevel := level
	if cfg.Output.Progress && consoleLevel < logging.WarnLevel {
		consoleLevel = logging.WarnLevel
	}
	return logging.NewMultiLogger(logging.NewConsoleLogger(console, consoleLevel), fileLogger), nil
}

func newOrchestrator(ctx context.Context, out io.Writer, params Params, cfg *config.Config, logger logging.Logger) (*mirror.Orchestrator, error) {
	source, err := storage.NewLocal(params.Source, storage.WithFollowSymlinks(), storage.WithMissingRoot())
	if err != nil {
		return nil, fmt.Errorf("failed to create source backend: %w", err)
	}
	replica, err := storage.NewLocal(params.Replica)
	if err != nil {
		return nil, fmt.Errorf("failed to create replica backend: %w", err)
	}

	algorithm, err := compare.ParseAlgorithm(cfg.Sync.Comparison)
	if err != nil {
		return nil, err
	}
	comparator := compare.NewDigestComparator(algorithm, cfg.Performance.BufferSize)

	limiter, err := ratelimit.ParseLimit(cfg.Performance.BandwidthLimit)
	if err != nil {
		return nil, err
	}
	if limiter != nil {
		// Hashing reads share the copy bandwidth limit
		comparator.SetReaderWrapper(limiter.Wrapper(ctx))
		logger.Info(ctx, fmt.Sprintf("Bandwidth limited to %s", limiter), nil)
	}

	formatter, err := newFormatter(out, cfg)
	if err != nil {
		return nil, err
	}

	return mirror.New(
		models.SyncPair{SourceRoot: params.Source, ReplicaRoot: params.Replica},
		source, replica, comparator, logger,
		mirror.Options{
			DryRun:    mirrorFlags.DryRun,
			Exclude:   cfg.Sync.Exclude,
			Limiter:   limiter,
			Formatter: formatter,
			Output:    out,
		},
	)
}

// newFormatter picks the pass output. The progress bar needs a terminal.
func newFormatter(out io.Writer, cfg *config.Config) (output.Formatter, error) {
	if cfg.Output.Progress {
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return output.NewProgressFormatter(), nil
		}
	}
	if cfg.Output.Quiet {
		return output.NewNullFormatter(), nil
	}
	return output.New(cfg.Output.Format)
}

func startWatch(ctx context.Context, source string, cfg *config.Config, sched *scheduler.Scheduler, logger logging.Logger) error {
	debounce, err := cfg.WatchDebounce()
	if err != nil {
		return err
	}
	matcher, err := mirror.NewMatcher(cfg.Sync.Exclude)
	if err != nil {
		return err
	}

	w := watch.New(source, debounce, sched.Trigger, logger)
	w.SetFilter(func(rel string) bool { return matcher.Match(rel, false) })

	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Error(ctx, "Error watching source, falling back to the interval only", err, nil)
		}
	}()
	return nil
}
