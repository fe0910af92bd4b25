package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"codesweep/internal/config"
	"codesweep/internal/engine"
	"codesweep/internal/errors"
	"codesweep/internal/protocol"
	"codesweep/internal/report"
)

var (
	analyzeFormat   string
	analyzeSeverity string
	analyzeLanguage string
	analyzeTimeout  int
	analyzeWorkers  int
	analyzeDeadline int
	analyzeOut      string
	analyzeNoColor  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a repository and report diagnostics",
	Long: `Analyze a repository with the language servers of every detected
language. Each language is analyzed independently: an unavailable server
skips its language, a crashed one is restarted once, and the report
marks what was left out.

Example:
  codesweep analyze .
  codesweep analyze ./service --severity warning --format json
  codesweep analyze . --language python --deadline 120`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", report.FormatText,
		"Output format: text, json, or yaml")
	analyzeCmd.Flags().StringVar(&analyzeSeverity, "severity", "",
		"Keep only diagnostics at least this severe: error, warning, information, or hint")
	analyzeCmd.Flags().StringVar(&analyzeLanguage, "language", "",
		"Restrict analysis to a single language id")
	analyzeCmd.Flags().IntVar(&analyzeTimeout, "timeout", 0,
		"Per-request timeout in seconds (0 uses the configured default)")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0,
		"Worker pool size per language (0 uses the configured default)")
	analyzeCmd.Flags().IntVar(&analyzeDeadline, "deadline", 0,
		"Whole-run deadline in seconds; expiry yields a partial report (0 disables)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "",
		"Write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeNoColor, "no-color", false,
		"Disable colorized text output")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}

	if analyzeSeverity != "" && protocol.ParseSeverity(analyzeSeverity) == 0 {
		fmt.Fprintf(os.Stderr, "Error: unknown severity %q (expected error, warning, information, or hint)\n", analyzeSeverity)
		os.Exit(1)
	}

	cfg, cfgErr := config.LoadConfig(repoPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}
	logger := newLogger(cfg)
	if cfgErr != nil {
		logger.Warn("Falling back to default configuration", "error", cfgErr)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := engine.Analyze(context.Background(), repoPath, engine.Options{
		SeverityFilter:   protocol.ParseSeverity(analyzeSeverity),
		LanguageOverride: analyzeLanguage,
		RequestTimeout:   time.Duration(analyzeTimeout) * time.Second,
		Workers:          analyzeWorkers,
		RunDeadline:      time.Duration(analyzeDeadline) * time.Second,
		Config:           cfg,
		Logger:           logger,
	})
	if err != nil {
		if errors.IsCode(err, errors.RepositoryNotFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	colorize := !analyzeNoColor && !color.NoColor
	if analyzeOut != "" {
		f, err := os.Create(analyzeOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot write report: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
		colorize = false
	}

	if err := report.Render(out, result, analyzeFormat, colorize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: rendering report: %v\n", err)
		os.Exit(1)
	}
}
