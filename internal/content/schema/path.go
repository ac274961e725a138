package schema

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// slugRE matches runs of characters that never survive into a file name.
	slugRE       = regexp.MustCompile(`[\s\-\\/."'\[\]!?#%()+*^:;|]+`)
	underscoreRE = regexp.MustCompile(`_+`)
)

// Record file extensions.
const (
	ExtHTML = "html"
	ExtYAML = "yml"
)

// Slug lowercases a title and collapses every run of whitespace,
// punctuation and path characters into a single underscore.
func Slug(title string) string {
	s := slugRE.ReplaceAllString(strings.ToLower(title), "_")
	return underscoreRE.ReplaceAllString(s, "_")
}

// Extension returns the file extension for a record type: html for
// anything containing "post" or "page", yml otherwise.
func Extension(typ string) string {
	if strings.Contains(typ, "post") || strings.Contains(typ, "page") {
		return ExtHTML
	}
	return ExtYAML
}

// CheckType reports whether typ can name a directory directly under the
// repository root: non-empty, no path separators, no leading dot.
func CheckType(typ string) error {
	switch {
	case typ == "":
		return fmt.Errorf("type is required")
	case strings.HasPrefix(typ, "."), strings.ContainsAny(typ, "/\\\x00"):
		return fmt.Errorf("type %q is not a plain directory name", typ)
	}
	return nil
}

// RelPath returns {type}/{slug}.{ext}, relative to the repository root.
// An empty title falls back to {type}-{id}.
func RelPath(typ, title string, id int64) string {
	name := fmt.Sprintf("%s-%d", typ, id)
	if title != "" {
		name = Slug(title)
	}
	return filepath.Join(typ, name+"."+Extension(typ))
}

// Resolve returns the canonical path of a record inside repoRoot.
func Resolve(repoRoot string, r *Record) string {
	return filepath.Join(repoRoot, RelPath(r.Type, r.Title, r.ID))
}

// IsRecordFile reports whether path has a record file extension.
func IsRecordFile(path string) bool {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case ExtHTML, ExtYAML:
		return true
	}
	return false
}
