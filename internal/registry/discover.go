package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// File is one discovered source file.
type File struct {
	// Path is the absolute file path
	Path string
	// RelPath is the path relative to the repository root
	RelPath string
	// Language is the detected language id
	Language string
}

// LanguageStat summarizes one detected language.
type LanguageStat struct {
	ID        string
	FileCount int
	// Markers lists the marker files found at the repo root
	Markers []string
	// Score combines file count and marker presence
	Score int
}

// Repository is the immutable result of discovery.
type Repository struct {
	Root  string
	Files []File
	// Languages is ranked: highest score first, ties by file count
	// descending then id ascending. Index 0 is the primary language.
	Languages []LanguageStat
}

// Options controls discovery behavior.
type Options struct {
	// Ignore is a list of doublestar globs matched against RelPath
	Ignore []string
	// MaxFileSizeBytes skips files larger than this (0 means no limit)
	MaxFileSizeBytes int64
	// MinFiles is the minimum file count for a language to be analyzed
	MinFiles int
	// Override restricts detection to a single language id
	Override string
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".venv":        true,
}

// Discover walks the repository once and groups source files by language.
// A repository with zero matching files yields an empty (not nil) result.
func Discover(root string, opts Options) (*Repository, error) {
	if opts.MinFiles < 1 {
		opts.MinFiles = 1
	}

	repo := &Repository{Root: root}
	counts := make(map[string]int)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, discovery is best-effort
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := byExtension(filepath.Ext(d.Name()))
		if !ok {
			return nil
		}
		if opts.Override != "" && lang != opts.Override {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = d.Name()
		}
		if ignored(rel, opts.Ignore) {
			return nil
		}

		if opts.MaxFileSizeBytes > 0 {
			info, statErr := d.Info()
			if statErr != nil || info.Size() > opts.MaxFileSizeBytes {
				return nil
			}
		}

		repo.Files = append(repo.Files, File{Path: path, RelPath: rel, Language: lang})
		counts[lang]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	analyzed := make(map[string]bool)
	for _, lang := range languages {
		n := counts[lang.ID]
		if n < opts.MinFiles {
			continue
		}
		analyzed[lang.ID] = true
		markers := presentMarkers(root, lang)
		repo.Languages = append(repo.Languages, LanguageStat{
			ID:        lang.ID,
			FileCount: n,
			Markers:   markers,
			Score:     n + markerWeight*len(markers),
		})
	}

	// Files only holds files of languages that met the threshold.
	if len(analyzed) < len(counts) {
		kept := repo.Files[:0]
		for _, f := range repo.Files {
			if analyzed[f.Language] {
				kept = append(kept, f)
			}
		}
		repo.Files = kept
	}

	sort.SliceStable(repo.Languages, func(i, j int) bool {
		a, b := repo.Languages[i], repo.Languages[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.FileCount != b.FileCount {
			return a.FileCount > b.FileCount
		}
		return a.ID < b.ID
	})

	return repo, nil
}

// FilesFor returns the files of one language, in discovery order.
func (r *Repository) FilesFor(language string) []File {
	var out []File
	for _, f := range r.Files {
		if f.Language == language {
			out = append(out, f)
		}
	}
	return out
}

// Primary returns the highest-scoring language id, or "" if none detected.
func (r *Repository) Primary() string {
	if len(r.Languages) == 0 {
		return ""
	}
	return r.Languages[0].ID
}

func ignored(rel string, globs []string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func presentMarkers(root string, lang Language) []string {
	var out []string
	for _, m := range lang.Markers {
		if _, err := os.Stat(filepath.Join(root, m)); err == nil {
			out = append(out, m)
		}
	}
	return out
}
