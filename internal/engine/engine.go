// Package engine orchestrates one analysis run: discovery, one server
// per detected language, parallel collection, and report assembly.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codesweep/internal/classify"
	"codesweep/internal/collector"
	"codesweep/internal/config"
	"codesweep/internal/errors"
	"codesweep/internal/protocol"
	"codesweep/internal/registry"
	"codesweep/internal/report"
	"codesweep/internal/supervisor"
)

// Options tunes one analysis run. Zero values select configuration
// defaults.
type Options struct {
	// SeverityFilter keeps only diagnostics at least this severe
	SeverityFilter protocol.DiagnosticSeverity
	// LanguageOverride restricts the run to a single language id
	LanguageOverride string
	// RequestTimeout overrides the per-request timeout
	RequestTimeout time.Duration
	// Workers overrides the per-language worker pool size
	Workers int
	// RunDeadline bounds the whole run; expiry yields a partial report
	RunDeadline time.Duration

	Config *config.Config
	Logger *slog.Logger
}

// Analyze runs the full pipeline against the repository at repoPath.
// A missing repository is the only hard failure; every other problem
// degrades to a skipped language, a failed file, or a partial report.
func Analyze(ctx context.Context, repoPath string, opts Options) (*report.AnalysisReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.RepositoryNotFound,
			fmt.Sprintf("repository path does not exist or is not a directory: %s", repoPath), err)
	}
	root, err := filepath.Abs(repoPath)
	if err != nil {
		root = repoPath
	}

	runStart := time.Now()
	if opts.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RunDeadline)
		defer cancel()
	}

	repo, err := registry.Discover(root, registry.Options{
		Ignore:           cfg.Discovery.Ignore,
		MaxFileSizeBytes: cfg.Discovery.MaxFileSizeBytes,
		MinFiles:         cfg.Collector.MinFilesPerLanguage,
		Override:         opts.LanguageOverride,
	})
	if err != nil {
		return nil, errors.New(errors.InternalError, "repository discovery failed", err)
	}
	discoveryMs := time.Since(runStart).Milliseconds()

	logger.Info("Discovered repository",
		"root", root,
		"files", len(repo.Files),
		"languages", languageIDs(repo.Languages),
	)

	sup := supervisor.New(root, cfg, logger)
	defer sup.StopAll()

	coll := collector.New(collectorOptions(cfg, opts), classify.New(cfg.Classifier), logger)

	analysisStart := time.Now()
	var (
		mu       sync.Mutex
		enriched []report.EnrichedDiagnostic
		proc     = struct{ processed, failed, discovered int }{}
		slowest  time.Duration
	)
	proc.discovered = len(repo.Files)

	var g errgroup.Group
	for _, stat := range repo.Languages {
		stat := stat
		g.Go(func() error {
			files := repo.FilesFor(stat.ID)

			sess, err := sup.Start(ctx, stat.ID)
			if err != nil {
				logger.Warn("Skipping language, server unavailable",
					"language", stat.ID, "error", err)
				mu.Lock()
				proc.failed += len(files)
				mu.Unlock()
				return nil
			}

			probe := func(ctx context.Context) (collector.Session, error) {
				healthy, err := sup.EnsureHealthy(ctx, sess)
				if err != nil {
					return nil, err
				}
				sess = healthy
				return healthy.Client, nil
			}

			out := coll.Collect(ctx, probe, stat.ID, files)

			mu.Lock()
			enriched = append(enriched, out.Diagnostics...)
			proc.processed += out.Processed
			proc.failed += out.Failed
			if out.SlowestRequest > slowest {
				slowest = out.SlowestRequest
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	analysisMs := time.Since(analysisStart).Milliseconds()

	partial := ctx.Err() != nil

	startMs := make(map[string]int64)
	for lang, d := range sup.StartDurations() {
		startMs[lang] = d.Milliseconds()
	}

	result := report.Build(report.BuildParams{
		Root:             root,
		Diagnostics:      enriched,
		DiscoveredFiles:  proc.discovered,
		ProcessedFiles:   proc.processed,
		FailedFiles:      proc.failed,
		SkippedLanguages: skippedLanguages(sup.Disabled()),
		Partial:          partial,
		TopFiles:         cfg.Report.TopFiles,
		Timings: report.Timings{
			DiscoveryMs:      discoveryMs,
			ServerStartMs:    startMs,
			AnalysisMs:       analysisMs,
			TotalMs:          time.Since(runStart).Milliseconds(),
			SlowestRequestMs: slowest.Milliseconds(),
		},
	})

	logger.Info("Analysis complete",
		"diagnostics", result.TotalDiagnostics,
		"processed", result.ProcessedFiles,
		"failed", result.FailedFiles,
		"partial", result.Partial,
		"totalMs", result.Timings.TotalMs,
	)
	return result, nil
}

func collectorOptions(cfg *config.Config, opts Options) collector.Options {
	co := collector.Options{
		Workers:        cfg.Collector.WorkersPerLanguage,
		RequestTimeout: time.Duration(cfg.Collector.RequestTimeoutMs) * time.Millisecond,
		MaxRetries:     cfg.Collector.MaxRetries,
		RetryBackoff:   time.Duration(cfg.Collector.RetryBackoffMs) * time.Millisecond,
		BatchSize:      cfg.Collector.BatchSize,
		SeverityFilter: opts.SeverityFilter,
	}
	if opts.Workers > 0 {
		co.Workers = opts.Workers
	}
	if opts.RequestTimeout > 0 {
		co.RequestTimeout = opts.RequestTimeout
	}
	return co
}

func skippedLanguages(disabled map[string]string) []report.SkippedLanguage {
	out := make([]report.SkippedLanguage, 0, len(disabled))
	for lang, reason := range disabled {
		out = append(out, report.SkippedLanguage{Language: lang, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

func languageIDs(stats []registry.LanguageStat) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = s.ID
	}
	return out
}
