// Package registry maps file extensions and marker files to known languages
// and discovers the analyzable files of a repository.
package registry

// Language describes one supported language and its protocol server binding.
type Language struct {
	// ID is the canonical language identifier (python, typescript, ...)
	ID string

	// Extensions are the file extensions attributed to this language
	Extensions []string

	// Markers are repo-root config/manifest files that signal the language
	Markers []string

	// ProtocolID is the languageId sent over the wire in didOpen
	ProtocolID string
}

// markerWeight is how many files one marker manifest is worth in scoring.
const markerWeight = 5

// languages is the static language table, checked in declaration order.
var languages = []Language{
	{
		ID:         "python",
		Extensions: []string{".py"},
		Markers:    []string{"pyproject.toml", "requirements.txt", "setup.py"},
		ProtocolID: "python",
	},
	{
		ID:         "typescript",
		Extensions: []string{".ts", ".tsx"},
		Markers:    []string{"tsconfig.json"},
		ProtocolID: "typescript",
	},
	{
		ID:         "javascript",
		Extensions: []string{".js", ".jsx"},
		Markers:    []string{"package.json"},
		ProtocolID: "javascript",
	},
	{
		ID:         "go",
		Extensions: []string{".go"},
		Markers:    []string{"go.mod"},
		ProtocolID: "go",
	},
	{
		ID:         "rust",
		Extensions: []string{".rs"},
		Markers:    []string{"Cargo.toml"},
		ProtocolID: "rust",
	},
	{
		ID:         "java",
		Extensions: []string{".java"},
		Markers:    []string{"pom.xml", "build.gradle"},
		ProtocolID: "java",
	},
}

// Known returns the language table in declaration order.
func Known() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Lookup returns the language with the given id.
func Lookup(id string) (Language, bool) {
	for _, l := range languages {
		if l.ID == id {
			return l, true
		}
	}
	return Language{}, false
}

// byExtension maps a file extension to a language id.
func byExtension(ext string) (string, bool) {
	for _, l := range languages {
		for _, e := range l.Extensions {
			if e == ext {
				return l.ID, true
			}
		}
	}
	return "", false
}
