package report

import (
	"testing"

	"codesweep/internal/classify"
	"codesweep/internal/protocol"
	"codesweep/internal/symbols"
)

func enriched(file string, line int, message string, impact classify.Impact, language string) EnrichedDiagnostic {
	return EnrichedDiagnostic{
		RawDiagnostic: protocol.RawDiagnostic{
			File:     file,
			Line:     line,
			Column:   1,
			Severity: protocol.SeverityError,
			Message:  message,
		},
		Language: language,
		Impact:   impact,
	}
}

func TestBuildDeduplicates(t *testing.T) {
	dup := enriched("a.py", 3, "undefined name 'x'", classify.Major, "python")
	r := Build(BuildParams{
		Root:        "/repo",
		Diagnostics: []EnrichedDiagnostic{dup, dup, dup},
	})

	if r.TotalDiagnostics != 1 {
		t.Errorf("TotalDiagnostics = %d, want 1 after dedupe", r.TotalDiagnostics)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	in := []EnrichedDiagnostic{
		enriched("b.py", 1, "one", classify.Minor, "python"),
		enriched("a.py", 2, "two", classify.Critical, "python"),
		enriched("a.py", 2, "two", classify.Critical, "python"),
	}

	first := Build(BuildParams{Root: "/repo", Diagnostics: in})
	second := Build(BuildParams{Root: "/repo", Diagnostics: first.Diagnostics})

	if len(first.Diagnostics) != len(second.Diagnostics) {
		t.Fatalf("second pass changed the set: %d vs %d",
			len(first.Diagnostics), len(second.Diagnostics))
	}
	for i := range first.Diagnostics {
		if first.Diagnostics[i] != second.Diagnostics[i] {
			t.Errorf("diagnostic %d changed across passes", i)
		}
	}
}

func TestBuildSortOrder(t *testing.T) {
	r := Build(BuildParams{
		Root: "/repo",
		Diagnostics: []EnrichedDiagnostic{
			enriched("z.py", 5, "minor thing", classify.Minor, "python"),
			enriched("b.py", 9, "late in file", classify.Critical, "python"),
			enriched("b.py", 2, "early in file", classify.Critical, "python"),
			enriched("a.py", 1, "major thing", classify.Major, "python"),
		},
	})

	wantOrder := []struct {
		file string
		line int
	}{
		{"b.py", 2},
		{"b.py", 9},
		{"a.py", 1},
		{"z.py", 5},
	}
	for i, w := range wantOrder {
		got := r.Diagnostics[i]
		if got.File != w.file || got.Line != w.line {
			t.Errorf("position %d = %s:%d, want %s:%d", i, got.File, got.Line, w.file, w.line)
		}
	}
}

func TestBuildCounts(t *testing.T) {
	r := Build(BuildParams{
		Root: "/repo",
		Diagnostics: []EnrichedDiagnostic{
			enriched("a.py", 1, "one", classify.Critical, "python"),
			enriched("a.py", 2, "two", classify.Major, "python"),
			enriched("b.ts", 1, "three", classify.Major, "typescript"),
		},
		DiscoveredFiles: 5,
		ProcessedFiles:  4,
		FailedFiles:     1,
	})

	if r.CountsByImpact[classify.Critical] != 1 || r.CountsByImpact[classify.Major] != 2 {
		t.Errorf("CountsByImpact = %v", r.CountsByImpact)
	}
	if r.CountsByLanguage["python"] != 2 || r.CountsByLanguage["typescript"] != 1 {
		t.Errorf("CountsByLanguage = %v", r.CountsByLanguage)
	}
	if r.DiscoveredFiles != 5 || r.ProcessedFiles != 4 || r.FailedFiles != 1 {
		t.Errorf("file accounting = %d/%d/%d", r.DiscoveredFiles, r.ProcessedFiles, r.FailedFiles)
	}
	if r.RunID == "" {
		t.Errorf("RunID not set")
	}
}

func TestBuildTopFiles(t *testing.T) {
	var in []EnrichedDiagnostic
	for i := 0; i < 3; i++ {
		in = append(in, enriched("hot.py", i+1, "x", classify.Minor, "python"))
	}
	in = append(in, enriched("warm.py", 1, "x", classify.Minor, "python"))
	in = append(in, enriched("also.py", 1, "x", classify.Minor, "python"))

	r := Build(BuildParams{Root: "/repo", Diagnostics: in, TopFiles: 2})

	if len(r.TopFiles) != 2 {
		t.Fatalf("TopFiles = %+v, want 2 entries", r.TopFiles)
	}
	if r.TopFiles[0].File != "hot.py" || r.TopFiles[0].Count != 3 {
		t.Errorf("TopFiles[0] = %+v, want hot.py x3", r.TopFiles[0])
	}
	// Equal counts tie-break on file name
	if r.TopFiles[1].File != "also.py" {
		t.Errorf("TopFiles[1] = %+v, want also.py", r.TopFiles[1])
	}
}

func TestContextString(t *testing.T) {
	tests := []struct {
		name string
		d    EnrichedDiagnostic
		want string
	}{
		{
			name: "method in class",
			d:    EnrichedDiagnostic{Symbol: "render", Role: symbols.RoleMethod, Container: "Widget"},
			want: "Method 'render' in class 'Widget'",
		},
		{
			name: "bare function",
			d:    EnrichedDiagnostic{Symbol: "helper", Role: symbols.RoleFunction},
			want: "Function 'helper'",
		},
		{
			name: "module scope",
			d:    EnrichedDiagnostic{Role: symbols.RoleModule},
			want: "Module",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.ContextString(); got != tt.want {
				t.Errorf("ContextString() = %q, want %q", got, tt.want)
			}
		})
	}
}
