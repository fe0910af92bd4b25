package registry

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFiles creates a repo layout under a fresh temp dir.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func TestDiscoverEmptyRepo(t *testing.T) {
	repo, err := Discover(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(repo.Files) != 0 {
		t.Errorf("Files = %d, want 0", len(repo.Files))
	}
	if len(repo.Languages) != 0 {
		t.Errorf("Languages = %d, want 0", len(repo.Languages))
	}
	if repo.Primary() != "" {
		t.Errorf("Primary() = %q, want empty", repo.Primary())
	}
}

func TestDiscoverMarkerScoring(t *testing.T) {
	// Three js files vs one python file plus a marker manifest: the
	// marker is worth five files, so python wins.
	root := writeFiles(t, map[string]string{
		"a.js":             "x",
		"b.js":             "x",
		"c.js":             "x",
		"app.py":           "x",
		"requirements.txt": "requests",
	})

	repo, err := Discover(root, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := repo.Primary(); got != "python" {
		t.Errorf("Primary() = %q, want python", got)
	}

	var py LanguageStat
	for _, s := range repo.Languages {
		if s.ID == "python" {
			py = s
		}
	}
	if py.Score != 1+markerWeight {
		t.Errorf("python Score = %d, want %d", py.Score, 1+markerWeight)
	}
}

func TestDiscoverTieBreak(t *testing.T) {
	// Equal scores, equal file counts: id ascending wins.
	root := writeFiles(t, map[string]string{
		"a.py": "x",
		"b.rs": "x",
	})

	repo, err := Discover(root, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := repo.Primary(); got != "python" {
		t.Errorf("Primary() = %q, want python (id tiebreak)", got)
	}
}

func TestDiscoverSkipDirsAndIgnore(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"src/main.py":          "x",
		"node_modules/dep.js":  "x",
		".git/hooks/pre.py":    "x",
		"__pycache__/cached.py": "x",
		"gen/out.py":           "x",
	})

	repo, err := Discover(root, Options{Ignore: []string{"gen/**"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(repo.Files) != 1 {
		t.Fatalf("Files = %d, want 1 (got %+v)", len(repo.Files), repo.Files)
	}
	if repo.Files[0].RelPath != filepath.FromSlash("src/main.py") {
		t.Errorf("RelPath = %q, want src/main.py", repo.Files[0].RelPath)
	}
}

func TestDiscoverMaxFileSize(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"small.py": "x",
		"big.py":   string(make([]byte, 2048)),
	})

	repo, err := Discover(root, Options{MaxFileSizeBytes: 1024})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(repo.Files) != 1 || repo.Files[0].RelPath != "small.py" {
		t.Errorf("Files = %+v, want just small.py", repo.Files)
	}
}

func TestDiscoverMinFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.py": "x",
		"b.py": "x",
		"c.go": "x",
	})

	repo, err := Discover(root, Options{MinFiles: 2})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(repo.Languages) != 1 || repo.Languages[0].ID != "python" {
		t.Errorf("Languages = %+v, want python only", repo.Languages)
	}
	// Files of a language below the threshold are dropped with it, so the
	// discovered count matches what the collector will actually see.
	if len(repo.Files) != 2 {
		t.Errorf("Files = %d, want 2", len(repo.Files))
	}
	for _, f := range repo.Files {
		if f.Language != "python" {
			t.Errorf("file %s kept for excluded language %s", f.RelPath, f.Language)
		}
	}
}

func TestDiscoverOverride(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.py": "x",
		"b.go": "x",
	})

	repo, err := Discover(root, Options{Override: "go"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(repo.Languages) != 1 || repo.Languages[0].ID != "go" {
		t.Errorf("Languages = %+v, want go only", repo.Languages)
	}
	if len(repo.Files) != 1 {
		t.Errorf("Files = %d, want 1", len(repo.Files))
	}
}

func TestFilesFor(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.py": "x",
		"b.go": "x",
		"c.py": "x",
	})

	repo, err := Discover(root, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := len(repo.FilesFor("python")); got != 2 {
		t.Errorf("FilesFor(python) = %d files, want 2", got)
	}
	if got := len(repo.FilesFor("rust")); got != 0 {
		t.Errorf("FilesFor(rust) = %d files, want 0", got)
	}
}
