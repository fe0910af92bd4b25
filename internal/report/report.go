// Package report builds the final deduplicated, severity-classified
// analysis report and renders it for human or machine consumers.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"codesweep/internal/classify"
	"codesweep/internal/protocol"
	"codesweep/internal/symbols"
)

// EnrichedDiagnostic is a raw diagnostic plus symbol context and the
// business-impact bucket. Immutable once built.
type EnrichedDiagnostic struct {
	protocol.RawDiagnostic `yaml:",inline"`

	Language  string          `json:"language" yaml:"language"`
	Symbol    string          `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Role      symbols.Role    `json:"symbolRole" yaml:"symbolRole"`
	Container string          `json:"container,omitempty" yaml:"container,omitempty"`
	Impact    classify.Impact `json:"impact" yaml:"impact"`
}

// ContextString renders the symbol context the way the listing shows it.
func (d EnrichedDiagnostic) ContextString() string {
	switch {
	case d.Role == symbols.RoleMethod && d.Container != "":
		return fmt.Sprintf("Method '%s' in class '%s'", d.Symbol, d.Container)
	case d.Symbol != "":
		return fmt.Sprintf("%s '%s'", d.Role, d.Symbol)
	default:
		return "Module"
	}
}

// FileCount pairs a file with its diagnostic count.
type FileCount struct {
	File  string `json:"file" yaml:"file"`
	Count int    `json:"count" yaml:"count"`
}

// SkippedLanguage records a language excluded from the run.
type SkippedLanguage struct {
	Language string `json:"language" yaml:"language"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Timings is the performance breakdown of a run, in milliseconds.
type Timings struct {
	DiscoveryMs      int64            `json:"discoveryMs" yaml:"discoveryMs"`
	ServerStartMs    map[string]int64 `json:"serverStartMs,omitempty" yaml:"serverStartMs,omitempty"`
	AnalysisMs       int64            `json:"analysisMs" yaml:"analysisMs"`
	TotalMs          int64            `json:"totalMs" yaml:"totalMs"`
	SlowestRequestMs int64            `json:"slowestRequestMs" yaml:"slowestRequestMs"`
}

// AnalysisReport is the immutable result of one run.
type AnalysisReport struct {
	RunID       string    `json:"runId" yaml:"runId"`
	Root        string    `json:"root" yaml:"root"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	// Partial marks runs truncated by the run deadline
	Partial bool `json:"partial" yaml:"partial"`

	Diagnostics []EnrichedDiagnostic `json:"diagnostics" yaml:"diagnostics"`

	TotalDiagnostics int                     `json:"totalDiagnostics" yaml:"totalDiagnostics"`
	CountsByImpact   map[classify.Impact]int `json:"countsByImpact" yaml:"countsByImpact"`
	CountsByLanguage map[string]int          `json:"countsByLanguage" yaml:"countsByLanguage"`
	TopFiles         []FileCount             `json:"topFiles,omitempty" yaml:"topFiles,omitempty"`

	DiscoveredFiles  int               `json:"discoveredFiles" yaml:"discoveredFiles"`
	ProcessedFiles   int               `json:"processedFiles" yaml:"processedFiles"`
	FailedFiles      int               `json:"failedFiles" yaml:"failedFiles"`
	SkippedLanguages []SkippedLanguage `json:"skippedLanguages,omitempty" yaml:"skippedLanguages,omitempty"`

	Timings Timings `json:"timings" yaml:"timings"`
}

// BuildParams carries everything the aggregation step needs.
type BuildParams struct {
	Root             string
	Diagnostics      []EnrichedDiagnostic
	DiscoveredFiles  int
	ProcessedFiles   int
	FailedFiles      int
	SkippedLanguages []SkippedLanguage
	Partial          bool
	TopFiles         int
	Timings          Timings
}

// Build deduplicates, sorts, and summarizes. Deduplication keys on
// (file, line, column, message); identical tuples from retries or
// overlapping sources collapse to one entry. Build is idempotent: its
// output fed back in yields the same set.
func Build(p BuildParams) *AnalysisReport {
	deduped := dedupe(p.Diagnostics)

	sort.SliceStable(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if ra, rb := classify.Rank(a.Impact), classify.Rank(b.Impact); ra != rb {
			return ra < rb
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	r := &AnalysisReport{
		RunID:            uuid.NewString(),
		Root:             p.Root,
		GeneratedAt:      time.Now().UTC(),
		Partial:          p.Partial,
		Diagnostics:      deduped,
		TotalDiagnostics: len(deduped),
		CountsByImpact:   make(map[classify.Impact]int),
		CountsByLanguage: make(map[string]int),
		DiscoveredFiles:  p.DiscoveredFiles,
		ProcessedFiles:   p.ProcessedFiles,
		FailedFiles:      p.FailedFiles,
		SkippedLanguages: p.SkippedLanguages,
		Timings:          p.Timings,
	}

	perFile := make(map[string]int)
	for _, d := range deduped {
		r.CountsByImpact[d.Impact]++
		r.CountsByLanguage[d.Language]++
		perFile[d.File]++
	}

	r.TopFiles = topFiles(perFile, p.TopFiles)
	return r
}

type dedupeKey struct {
	file    string
	line    int
	column  int
	message string
}

func dedupe(in []EnrichedDiagnostic) []EnrichedDiagnostic {
	seen := make(map[dedupeKey]bool, len(in))
	out := make([]EnrichedDiagnostic, 0, len(in))
	for _, d := range in {
		key := dedupeKey{d.File, d.Line, d.Column, d.Message}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

func topFiles(perFile map[string]int, n int) []FileCount {
	if n <= 0 || len(perFile) == 0 {
		return nil
	}
	out := make([]FileCount, 0, len(perFile))
	for f, c := range perFile {
		out = append(out, FileCount{File: f, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].File < out[j].File
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
