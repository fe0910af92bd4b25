package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"codesweep/internal/config"
	"codesweep/internal/logging"
	"codesweep/internal/version"
)

var (
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
	// verboseFlag raises the level step by step (-v info, -vv debug)
	verboseFlag int
	// quietFlag suppresses all log output
	quietFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "codesweep",
	Short: "codesweep - multi-language diagnostic sweep",
	Long: `codesweep analyzes a repository with the language servers of every
language it detects, enriches each diagnostic with its enclosing symbol,
classifies business impact, and produces a deduplicated report.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("codesweep version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v",
		"Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress log output")
}

// newLogger builds the run logger. Flags win over the repository's logging
// configuration; without either, the configured format and level apply.
// Logs go to stderr so report output on stdout stays clean.
func newLogger(cfg *config.Config) *slog.Logger {
	if quietFlag {
		return logging.NewDiscardLogger()
	}
	if logLevelFlag != "" {
		return logging.NewLogger(os.Stderr, logging.LevelFromString(logLevelFlag))
	}
	if verboseFlag > 0 {
		return logging.NewLogger(os.Stderr, logging.LevelFromVerbosity(verboseFlag, false))
	}
	return logging.NewConfiguredLogger(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
}
