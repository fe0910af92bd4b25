// Package collector drives diagnostic collection for one language:
// opening files on a language-server session, requesting diagnostics
// and symbols, and enriching the results with symbol context and
// business impact.
package collector

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codesweep/internal/classify"
	errs "codesweep/internal/errors"
	"codesweep/internal/protocol"
	"codesweep/internal/registry"
	"codesweep/internal/report"
	"codesweep/internal/symbols"
)

// Session is the subset of the protocol client the collector drives.
// Defined here so tests can substitute a scripted server.
type Session interface {
	NotifyOpen(path, text string) error
	NotifyClose(path string) error
	RequestDiagnostics(ctx context.Context, path string, timeout time.Duration) ([]protocol.RawDiagnostic, error)
	RequestSymbols(ctx context.Context, path string, timeout time.Duration) ([]protocol.DocumentSymbol, error)
}

var _ Session = (*protocol.Client)(nil)

// Probe returns a healthy session or an error when the language can no
// longer be served. Called before every batch so a crashed server is
// restarted (or the language disabled) between batches, never mid-file.
type Probe func(ctx context.Context) (Session, error)

// Options tunes collection behavior for a run.
type Options struct {
	// Workers is the per-language worker pool size
	Workers int
	// RequestTimeout bounds each server request
	RequestTimeout time.Duration
	// MaxRetries is the number of retries after a timed-out request
	MaxRetries int
	// RetryBackoff is the initial retry delay, doubled per attempt
	RetryBackoff time.Duration
	// BatchSize is the starting (and maximum) batch width
	BatchSize int
	// SeverityFilter drops diagnostics less severe than this when set
	SeverityFilter protocol.DiagnosticSeverity
}

// Outcome is the result of collecting one language.
type Outcome struct {
	Diagnostics []report.EnrichedDiagnostic
	// Processed counts files that produced a diagnostic response
	Processed int
	// Failed counts files that exhausted retries or could not be opened
	Failed int
	// SlowestRequest is the longest single diagnostic request observed
	SlowestRequest time.Duration
}

// Collector collects and enriches diagnostics for one language at a
// time. A single collector can be reused across languages.
type Collector struct {
	opts       Options
	classifier *classify.Classifier
	logger     *slog.Logger
}

func New(opts Options, classifier *classify.Classifier, logger *slog.Logger) *Collector {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Collector{opts: opts, classifier: classifier, logger: logger}
}

// Collect runs the batched worker pool over files. Individual file
// failures are counted, never fatal. Collect returns early when ctx
// expires or the probe reports the language unserviceable, leaving the
// remaining files untouched.
func (c *Collector) Collect(ctx context.Context, probe Probe, language string, files []registry.File) Outcome {
	batch := newAdaptiveBatch(c.opts.BatchSize)
	start := time.Now()

	var (
		mu  sync.Mutex
		out Outcome
	)
	for off := 0; off < len(files); {
		if ctx.Err() != nil {
			c.logger.Warn("Collection cut short by deadline",
				"language", language, "remaining", len(files)-off)
			break
		}

		sess, err := probe(ctx)
		if err != nil {
			c.logger.Warn("Abandoning language mid-run",
				"language", language, "remaining", len(files)-off, "error", err)
			out.Failed += len(files) - off
			break
		}

		end := off + batch.Width()
		if end > len(files) {
			end = len(files)
		}

		var g errgroup.Group
		g.SetLimit(c.opts.Workers)
		for _, f := range files[off:end] {
			f := f
			g.Go(func() error {
				res := c.processFile(ctx, sess, language, f, batch)
				mu.Lock()
				defer mu.Unlock()
				if res.failed {
					out.Failed++
				} else {
					out.Processed++
					out.Diagnostics = append(out.Diagnostics, res.diags...)
				}
				if res.slowest > out.SlowestRequest {
					out.SlowestRequest = res.slowest
				}
				return nil
			})
		}
		_ = g.Wait()
		batch.EndBatch()
		off = end

		c.logProgress(language, off, len(files), time.Since(start))
	}
	return out
}

func (c *Collector) logProgress(language string, done, total int, elapsed time.Duration) {
	if done == 0 || done == total {
		c.logger.Info("Language analysis progress",
			"language", language, "processed", done, "total", total)
		return
	}
	rate := float64(done) / elapsed.Seconds()
	eta := time.Duration(float64(total-done) / rate * float64(time.Second))
	c.logger.Info("Language analysis progress",
		"language", language, "processed", done, "total", total,
		"eta", eta.Round(time.Second).String())
}

type fileResult struct {
	diags   []report.EnrichedDiagnostic
	failed  bool
	slowest time.Duration
}

// processFile runs the per-file protocol: open, then symbols and
// diagnostics concurrently, then close. Symbol failures degrade to
// module scope; diagnostic failures fail the file.
func (c *Collector) processFile(ctx context.Context, sess Session, language string, f registry.File, batch *adaptiveBatch) fileResult {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		c.logger.Warn("Skipping unreadable file", "file", f.RelPath, "error", err)
		return fileResult{failed: true}
	}

	if err := sess.NotifyOpen(f.Path, string(data)); err != nil {
		c.logger.Warn("Failed to open document", "file", f.RelPath, "error", err)
		return fileResult{failed: true}
	}
	defer func() {
		if err := sess.NotifyClose(f.Path); err != nil {
			c.logger.Debug("Failed to close document", "file", f.RelPath, "error", err)
		}
	}()

	var (
		wg      sync.WaitGroup
		entries []symbols.Entry
		diags   []protocol.RawDiagnostic
		diagErr error
		slowest time.Duration
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		entries = c.fileSymbols(ctx, sess, language, f, data)
	}()
	go func() {
		defer wg.Done()
		diags, slowest, diagErr = c.diagnosticsWithRetry(ctx, sess, f, batch)
	}()
	wg.Wait()

	if diagErr != nil {
		c.logger.Warn("Giving up on file", "file", f.RelPath, "error", diagErr)
		return fileResult{failed: true, slowest: slowest}
	}

	return fileResult{diags: c.enrich(language, f, diags, entries), slowest: slowest}
}

// fileSymbols resolves the symbol table for a file, falling back to a
// local tree-sitter parse when the server cannot provide one.
func (c *Collector) fileSymbols(ctx context.Context, sess Session, language string, f registry.File, source []byte) []symbols.Entry {
	entries, err := sess.RequestSymbols(ctx, f.Path, c.opts.RequestTimeout)
	if err == nil && len(entries) > 0 {
		return symbols.FromDocumentSymbols(entries)
	}
	if err != nil {
		c.logger.Debug("Symbol request failed, trying local parse",
			"file", f.RelPath, "error", err)
	}
	if !symbols.SupportsLocal(language) {
		return nil
	}
	local, err := symbols.Local(ctx, language, source)
	if err != nil {
		c.logger.Debug("Local symbol parse failed", "file", f.RelPath, "error", err)
		return nil
	}
	return local
}

// diagnosticsWithRetry requests diagnostics, retrying timed-out
// requests with doubling backoff. Non-timeout errors fail immediately.
func (c *Collector) diagnosticsWithRetry(ctx context.Context, sess Session, f registry.File, batch *adaptiveBatch) ([]protocol.RawDiagnostic, time.Duration, error) {
	var slowest time.Duration
	backoff := c.opts.RetryBackoff

	for attempt := 0; ; attempt++ {
		begin := time.Now()
		diags, err := sess.RequestDiagnostics(ctx, f.Path, c.opts.RequestTimeout)
		if elapsed := time.Since(begin); elapsed > slowest {
			slowest = elapsed
		}
		if err == nil {
			batch.RecordSuccess()
			return diags, slowest, nil
		}
		if !errs.IsCode(err, errs.Timeout) {
			return nil, slowest, err
		}
		batch.RecordTimeout()
		if attempt >= c.opts.MaxRetries {
			return nil, slowest, err
		}
		c.logger.Debug("Request timed out, retrying",
			"file", f.RelPath, "attempt", attempt+1, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return nil, slowest, errs.New(errs.Timeout, "diagnostic request abandoned", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// enrich attaches symbol context and impact, rewrites the file path to
// its repo-relative form, and applies the severity filter.
func (c *Collector) enrich(language string, f registry.File, diags []protocol.RawDiagnostic, entries []symbols.Entry) []report.EnrichedDiagnostic {
	out := make([]report.EnrichedDiagnostic, 0, len(diags))
	for _, d := range diags {
		if c.opts.SeverityFilter != 0 && d.Severity > c.opts.SeverityFilter {
			continue
		}
		d.File = f.RelPath
		sctx := symbols.Resolve(entries, d.Line)
		out = append(out, report.EnrichedDiagnostic{
			RawDiagnostic: d,
			Language:      language,
			Symbol:        sctx.Name,
			Role:          sctx.Role,
			Container:     sctx.Container,
			Impact:        c.classifier.Classify(d, sctx),
		})
	}
	return out
}
