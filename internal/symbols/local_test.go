package symbols

import (
	"context"
	"testing"
)

func TestSupportsLocal(t *testing.T) {
	for _, lang := range []string{"python", "javascript", "typescript", "go"} {
		if !SupportsLocal(lang) {
			t.Errorf("SupportsLocal(%q) = false, want true", lang)
		}
	}
	if SupportsLocal("java") {
		t.Errorf("SupportsLocal(java) = true, want false (no bundled grammar)")
	}
}

func TestLocalPython(t *testing.T) {
	source := []byte(`class Widget:
    def render(self):
        return 1


def helper():
    return 2
`)

	entries, err := Local(context.Background(), "python", source)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	widget, ok := byName["Widget"]
	if !ok {
		t.Fatalf("Widget not found in %+v", entries)
	}
	if widget.Role != RoleClass || widget.StartLine != 1 {
		t.Errorf("Widget = %+v, want class starting at line 1", widget)
	}

	render, ok := byName["render"]
	if !ok {
		t.Fatalf("render not found in %+v", entries)
	}
	if render.Role != RoleMethod {
		t.Errorf("render Role = %v, want Method (nested in class)", render.Role)
	}

	if helper := byName["helper"]; helper.Role != RoleFunction {
		t.Errorf("helper Role = %v, want Function", helper.Role)
	}
}

func TestLocalGo(t *testing.T) {
	source := []byte(`package x

func Handle() int {
	return 1
}
`)

	entries, err := Local(context.Background(), "go", source)
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Handle" || entries[0].Role != RoleFunction {
		t.Errorf("entries = %+v, want one function Handle", entries)
	}
}

func TestLocalUnknownLanguage(t *testing.T) {
	if _, err := Local(context.Background(), "java", []byte("class A {}")); err == nil {
		t.Errorf("expected error for language without a grammar")
	}
}
