// Package alias turns compilerOptions.paths into a prioritised alias table
// and resolves aliased module specifiers back to relative ones.
package alias

import (
	"path/filepath"
	"strings"

	"tscpaths/internal/tsconfig"
)

// Entry is one alias prefix with the absolute directories it may stand for.
// Candidates are tried in order and the first existing module wins.
type Entry struct {
	Prefix     string
	Candidates []string
}

// Table is the ordered list of alias entries used for resolution. It is
// built once per run and never modified, so it is safe to share.
type Table struct {
	entries []Entry
}

// BuildTable strips one trailing wildcard from every alias pattern and
// candidate, resolves candidates against baseDir and drops entries whose
// prefix is empty. Declaration order is preserved.
func BuildTable(paths tsconfig.Paths, baseDir string) *Table {
	t := &Table{}
	for _, m := range paths {
		prefix := strings.TrimSuffix(m.Pattern, "*")
		if prefix == "" {
			continue
		}

		candidates := make([]string, 0, len(m.Candidates))
		for _, c := range m.Candidates {
			c = filepath.FromSlash(strings.TrimSuffix(c, "*"))
			if !filepath.IsAbs(c) {
				c = filepath.Join(baseDir, c)
			}
			candidates = append(candidates, filepath.Clean(c))
		}

		t.entries = append(t.entries, Entry{Prefix: prefix, Candidates: candidates})
	}
	return t
}

// NewTable builds a table from entries that are already normalized.
func NewTable(entries []Entry) *Table {
	return &Table{entries: entries}
}

// Entries returns the entries in priority order.
func (t *Table) Entries() []Entry {
	return t.entries
}

// Len returns the number of usable alias entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Match returns the first entry whose prefix is a literal prefix of
// specifier. Matching is by string, not by path segment, so "@app" also
// matches "@application/x".
func (t *Table) Match(specifier string) (Entry, bool) {
	for _, e := range t.entries {
		if strings.HasPrefix(specifier, e.Prefix) {
			return e, true
		}
	}
	return Entry{}, false
}
