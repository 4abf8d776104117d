package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

// MirrorFlags holds the flags of the root mirror command
type MirrorFlags struct {
	Once       bool
	DryRun     bool
	Watch      bool
	NoLock     bool
	Progress   bool
	Exclude    []string
	Comparison string
	Bandwidth  string
	Output     string
	LogFormat  string
	LogLevel   string
}

var (
	globalFlags GlobalFlags
	mirrorFlags MirrorFlags
)

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/foldermirror/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"log debug messages",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"no log lines on the console (the log file is still written)",
	)
}

func addMirrorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&mirrorFlags.Once, "once", false, "run a single pass and exit with its status")
	f.BoolVar(&mirrorFlags.DryRun, "dry-run", false, "log what a pass would do without touching the replica")
	f.BoolVar(&mirrorFlags.Watch, "watch", false, "also run a pass shortly after the source changes")
	f.BoolVar(&mirrorFlags.NoLock, "no-lock", false, "do not take the replica lock file")
	f.BoolVar(&mirrorFlags.Progress, "progress", false, "show a progress bar for each pass")
	f.StringSliceVar(&mirrorFlags.Exclude, "exclude", nil, "glob patterns to neither copy nor delete (repeatable)")
	f.StringVar(&mirrorFlags.Comparison, "comparison", "", "content digest: sha256, md5")
	f.StringVarP(&mirrorFlags.Bandwidth, "bandwidth", "b", "", "copy bandwidth limit (e.g. \"10MB\", \"512KiB\")")
	f.StringVarP(&mirrorFlags.Output, "output", "o", "", "pass report on stdout: none, human, json")
	f.StringVar(&mirrorFlags.LogFormat, "log-format", "", "log file format: text, json")
	f.StringVar(&mirrorFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}
