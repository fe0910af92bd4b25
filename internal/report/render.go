package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"codesweep/internal/classify"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes the report in the requested format. Unknown formats
// fall back to text.
func Render(w io.Writer, r *AnalysisReport, format string, colorize bool) error {
	switch format {
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatYAML:
		return RenderYAML(w, r)
	default:
		return RenderText(w, r, colorize)
	}
}

// RenderJSON writes the structured document.
func RenderJSON(w io.Writer, r *AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderYAML writes the structured document as YAML.
func RenderYAML(w io.Writer, r *AnalysisReport) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

var impactColors = map[classify.Impact]*color.Color{
	classify.Critical: color.New(color.FgRed, color.Bold),
	classify.Major:    color.New(color.FgYellow),
	classify.Minor:    color.New(color.FgCyan),
	classify.Info:     color.New(color.FgWhite),
}

// RenderText writes the numbered human-readable listing.
func RenderText(w io.Writer, r *AnalysisReport, colorize bool) error {
	tag := func(i classify.Impact) string {
		if colorize {
			if c, ok := impactColors[i]; ok {
				return c.Sprint(string(i))
			}
		}
		return string(i)
	}

	fmt.Fprintf(w, "ERRORS: %d [%s: %d] [%s: %d] [%s: %d] [%s: %d]\n",
		r.TotalDiagnostics,
		tag(classify.Critical), r.CountsByImpact[classify.Critical],
		tag(classify.Major), r.CountsByImpact[classify.Major],
		tag(classify.Minor), r.CountsByImpact[classify.Minor],
		tag(classify.Info), r.CountsByImpact[classify.Info],
	)

	if r.TotalDiagnostics == 0 && !r.Partial && r.FailedFiles == 0 && len(r.SkippedLanguages) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}

	for i, d := range r.Diagnostics {
		msg := d.Message
		if d.Code != "" {
			msg += fmt.Sprintf(" (code: %s)", d.Code)
		}
		if d.Source != "" {
			msg += fmt.Sprintf(" [source: %s]", d.Source)
		}
		fmt.Fprintf(w, "%d [%s] %s:%d:%d / %s [%s]\n",
			i+1, tag(d.Impact), d.File, d.Line, d.Column, d.ContextString(), msg)
	}

	fmt.Fprintf(w, "\nFiles: %d discovered, %d processed, %d failed\n",
		r.DiscoveredFiles, r.ProcessedFiles, r.FailedFiles)

	if len(r.CountsByLanguage) > 0 {
		parts := make([]string, 0, len(r.CountsByLanguage))
		for _, fc := range sortedLanguageCounts(r.CountsByLanguage) {
			parts = append(parts, fmt.Sprintf("%s=%d", fc.File, fc.Count))
		}
		fmt.Fprintf(w, "By language: %s\n", strings.Join(parts, ", "))
	}

	if len(r.TopFiles) > 0 {
		fmt.Fprintln(w, "Top files:")
		for _, fc := range r.TopFiles {
			fmt.Fprintf(w, "  %4d  %s\n", fc.Count, fc.File)
		}
	}

	for _, s := range r.SkippedLanguages {
		fmt.Fprintf(w, "Skipped language %s: %s\n", s.Language, s.Reason)
	}

	fmt.Fprintf(w, "Timing: discovery %dms, analysis %dms, total %dms\n",
		r.Timings.DiscoveryMs, r.Timings.AnalysisMs, r.Timings.TotalMs)
	for lang, ms := range r.Timings.ServerStartMs {
		fmt.Fprintf(w, "  %s server start: %dms\n", lang, ms)
	}

	if r.Partial {
		fmt.Fprintln(w, "NOTE: run deadline exceeded, report is partial")
	}

	return nil
}

// sortedLanguageCounts reuses FileCount for stable language ordering.
func sortedLanguageCounts(counts map[string]int) []FileCount {
	out := make([]FileCount, 0, len(counts))
	for lang, c := range counts {
		out = append(out, FileCount{File: lang, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].File < out[j].File
	})
	return out
}
