// Package classify maps raw diagnostics to business-impact buckets.
// Classification is a pure function of (protocol severity, code,
// message, enclosing-symbol role) so it stays testable without a
// running server.
package classify

import (
	"strings"

	"codesweep/internal/config"
	"codesweep/internal/protocol"
	"codesweep/internal/symbols"
)

// Impact is the four-level business-impact bucket.
type Impact string

const (
	Critical Impact = "Critical"
	Major    Impact = "Major"
	Minor    Impact = "Minor"
	Info     Impact = "Info"
)

// rank orders impacts for report sorting. Lower sorts first.
var rank = map[Impact]int{
	Critical: 0,
	Major:    1,
	Minor:    2,
	Info:     3,
}

// Rank returns the sort rank of an impact (Critical first).
func Rank(i Impact) int {
	if r, ok := rank[i]; ok {
		return r
	}
	return len(rank)
}

// defaultCriticalKeywords flag security, crash, and corruption issues
// regardless of protocol severity.
var defaultCriticalKeywords = []string{
	"null pointer",
	"nil pointer",
	"segmentation fault",
	"access violation",
	"buffer overflow",
	"stack overflow",
	"sql injection",
	"cross-site scripting",
	"xss",
	"security",
	"memory leak",
	"resource leak",
	"use after free",
	"undefined behavior",
	"uninitialized",
	"not defined",
	"undefined variable",
	"undefined name",
}

// defaultMajorWarningKeywords escalate warnings that signal rot rather
// than style.
var defaultMajorWarningKeywords = []string{
	"deprecated",
	"obsolete",
	"performance",
	"inefficient",
}

// defaultEntryPointNames are symbol names treated as program entry
// points; errors inside them escalate to Critical.
var defaultEntryPointNames = []string{
	"main",
	"Main",
	"__main__",
	"init",
}

// Classifier evaluates the layered impact rules. Keyword lists come
// from configuration, falling back to the built-in defaults.
type Classifier struct {
	critical     []string
	majorWarning []string
	entryPoints  map[string]bool
}

// New builds a classifier from configuration. Empty lists select the
// built-in defaults.
func New(cfg config.ClassifierConfig) *Classifier {
	critical := cfg.CriticalKeywords
	if len(critical) == 0 {
		critical = defaultCriticalKeywords
	}
	majorWarning := cfg.MajorWarningKeywords
	if len(majorWarning) == 0 {
		majorWarning = defaultMajorWarningKeywords
	}
	entryNames := cfg.EntryPointNames
	if len(entryNames) == 0 {
		entryNames = defaultEntryPointNames
	}

	entryPoints := make(map[string]bool, len(entryNames))
	for _, n := range entryNames {
		entryPoints[n] = true
	}

	return &Classifier{
		critical:     lowered(critical),
		majorWarning: lowered(majorWarning),
		entryPoints:  entryPoints,
	}
}

// Classify applies the rules in order, first match wins:
//  1. critical keyword in code or message -> Critical
//  2. Error severity -> Major, escalated to Critical in an entry point
//  3. Warning severity -> Major on a major-warning keyword, else Minor
//  4. everything else -> Info
func (c *Classifier) Classify(d protocol.RawDiagnostic, ctx symbols.Context) Impact {
	subject := strings.ToLower(d.Message + " " + d.Code)

	for _, kw := range c.critical {
		if strings.Contains(subject, kw) {
			return Critical
		}
	}

	switch d.Severity {
	case protocol.SeverityError:
		if c.isEntryPoint(ctx) {
			return Critical
		}
		return Major
	case protocol.SeverityWarning:
		for _, kw := range c.majorWarning {
			if strings.Contains(subject, kw) {
				return Major
			}
		}
		return Minor
	default:
		return Info
	}
}

func (c *Classifier) isEntryPoint(ctx symbols.Context) bool {
	if ctx.Role != symbols.RoleFunction && ctx.Role != symbols.RoleMethod {
		return false
	}
	return c.entryPoints[ctx.Name]
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
