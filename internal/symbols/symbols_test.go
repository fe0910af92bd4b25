package symbols

import (
	"testing"

	"codesweep/internal/protocol"
)

func TestResolveTightestSpan(t *testing.T) {
	entries := []Entry{
		{Name: "Widget", Role: RoleClass, StartLine: 1, EndLine: 50},
		{Name: "render", Role: RoleMethod, StartLine: 10, EndLine: 20},
		{Name: "helpers", Role: RoleModule, StartLine: 1, EndLine: 100},
	}

	tests := []struct {
		name     string
		line     int
		wantName string
		wantRole Role
	}{
		{"inside method", 15, "render", RoleMethod},
		{"inside class only", 30, "Widget", RoleClass},
		{"module scope", 80, "helpers", RoleModule},
		{"method boundary start", 10, "render", RoleMethod},
		{"method boundary end", 20, "render", RoleMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Resolve(entries, tt.line)
			if ctx.Name != tt.wantName || ctx.Role != tt.wantRole {
				t.Errorf("Resolve(%d) = {%q %v}, want {%q %v}",
					tt.line, ctx.Name, ctx.Role, tt.wantName, tt.wantRole)
			}
		})
	}
}

func TestResolveSpecificityTieBreak(t *testing.T) {
	// Identical spans: the more specific role wins.
	entries := []Entry{
		{Name: "Outer", Role: RoleClass, StartLine: 5, EndLine: 10},
		{Name: "run", Role: RoleMethod, StartLine: 5, EndLine: 10},
	}

	ctx := Resolve(entries, 7)
	if ctx.Role != RoleMethod || ctx.Name != "run" {
		t.Errorf("Resolve = {%q %v}, want method to win the span tie", ctx.Name, ctx.Role)
	}
}

func TestResolveNoEnclosingSymbol(t *testing.T) {
	entries := []Entry{
		{Name: "f", Role: RoleFunction, StartLine: 10, EndLine: 12},
	}

	ctx := Resolve(entries, 3)
	if ctx.Role != RoleModule || ctx.Name != "" {
		t.Errorf("Resolve = {%q %v}, want anonymous module scope", ctx.Name, ctx.Role)
	}

	if got := Resolve(nil, 1); got != ModuleContext() {
		t.Errorf("Resolve(nil) = %+v, want module context", got)
	}
}

func TestResolveMethodContainer(t *testing.T) {
	entries := []Entry{
		{Name: "Repo", Role: RoleClass, StartLine: 1, EndLine: 40},
		{Name: "save", Role: RoleMethod, StartLine: 10, EndLine: 15},
	}

	ctx := Resolve(entries, 12)
	if ctx.Container != "Repo" {
		t.Errorf("Container = %q, want Repo", ctx.Container)
	}
}

func TestFromDocumentSymbolsPromotesClassFunctions(t *testing.T) {
	ds := []protocol.DocumentSymbol{
		{
			Name:  "Widget",
			Kind:  protocol.KindClass,
			Range: protocol.Range{Start: protocol.Position{Line: 0}, End: protocol.Position{Line: 30}},
			Children: []protocol.DocumentSymbol{
				{
					// Some servers report methods as plain functions
					Name:  "render",
					Kind:  protocol.KindFunction,
					Range: protocol.Range{Start: protocol.Position{Line: 2}, End: protocol.Position{Line: 8}},
				},
				{
					Name:  "count",
					Kind:  protocol.SymbolKind(14), // constant: no context role
					Range: protocol.Range{Start: protocol.Position{Line: 1}, End: protocol.Position{Line: 1}},
				},
			},
		},
		{
			Name:  "helper",
			Kind:  protocol.KindFunction,
			Range: protocol.Range{Start: protocol.Position{Line: 40}, End: protocol.Position{Line: 44}},
		},
	}

	entries := FromDocumentSymbols(ds)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if byName["render"].Role != RoleMethod {
		t.Errorf("render Role = %v, want Method (promoted inside class)", byName["render"].Role)
	}
	if byName["helper"].Role != RoleFunction {
		t.Errorf("helper Role = %v, want Function", byName["helper"].Role)
	}
	// Wire ranges are zero-based; entries are one-based
	if byName["Widget"].StartLine != 1 || byName["Widget"].EndLine != 31 {
		t.Errorf("Widget span = %d..%d, want 1..31", byName["Widget"].StartLine, byName["Widget"].EndLine)
	}
}
