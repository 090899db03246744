package alias

import (
	"path/filepath"
	"strings"
)

// Extensions are appended, in this order, when a candidate module does not
// exist verbatim. They only drive the lookup and never reach the output.
var Extensions = []string{".js", ".jsx", ".ts", ".tsx", ".d.ts", ".json"}

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	// Original is the specifier as found in the output file.
	Original string
	// Specifier is the rewritten specifier, or Original when unresolved.
	Specifier string
	// Prefix is the matched alias prefix; empty when no alias matched.
	Prefix string
	// Target is the matched module path without any appended extension.
	Target string
	// Found is the path that exists on disk, including its extension.
	Found string
	// SourceFile is the source-side location of the referencing file.
	SourceFile string
}

// Matched reports whether the specifier started with a known alias prefix.
func (r Resolution) Matched() bool {
	return r.Prefix != ""
}

// Resolved reports whether a candidate module was found.
func (r Resolution) Resolved() bool {
	return r.Target != ""
}

// Changed reports whether the specifier should be replaced.
func (r Resolution) Changed() bool {
	return r.Specifier != r.Original
}

// Resolver maps aliased specifiers in output files to relative specifiers.
// It holds no mutable state and can be used from several goroutines as long
// as its ExistsFunc can.
type Resolver struct {
	table      *Table
	sourceRoot string
	outputRoot string
	exists     ExistsFunc
}

// NewResolver creates a Resolver. Output files under outputRoot are mapped
// onto sourceRoot to find the location relative paths are computed from.
// A nil exists uses OSExists.
func NewResolver(table *Table, sourceRoot, outputRoot string, exists ExistsFunc) *Resolver {
	if exists == nil {
		exists = OSExists
	}
	return &Resolver{
		table:      table,
		sourceRoot: filepath.Clean(sourceRoot),
		outputRoot: filepath.Clean(outputRoot),
		exists:     exists,
	}
}

// Table returns the alias table the resolver uses.
func (r *Resolver) Table() *Table {
	return r.table
}

// SourceFile re-roots outputFile from the output directory onto the source
// root, keeping its relative sub-path.
func (r *Resolver) SourceFile(outputFile string) string {
	rel, err := filepath.Rel(r.outputRoot, outputFile)
	if err != nil {
		return outputFile
	}
	return filepath.Join(r.sourceRoot, rel)
}

// Resolve rewrites specifier as referenced from outputFile. Only the first
// alias whose prefix matches is considered; its candidates are checked in
// declaration order, each verbatim and then with every known extension.
// When nothing matches, or no candidate exists, the specifier is returned
// unchanged.
func (r *Resolver) Resolve(specifier, outputFile string) Resolution {
	res := Resolution{Original: specifier, Specifier: specifier}

	entry, ok := r.table.Match(specifier)
	if !ok {
		return res
	}
	res.Prefix = entry.Prefix
	res.SourceFile = r.SourceFile(outputFile)

	tail := filepath.FromSlash(specifier[len(entry.Prefix):])
	for _, dir := range entry.Candidates {
		module := filepath.Join(dir, tail)
		path, found := r.lookup(module)
		if !found {
			continue
		}

		res.Target = module
		res.Found = path
		res.Specifier = relativeSpecifier(filepath.Dir(res.SourceFile), module)
		return res
	}

	return res
}

func (r *Resolver) lookup(module string) (string, bool) {
	if r.exists(module) {
		return module, true
	}
	for _, ext := range Extensions {
		if r.exists(module + ext) {
			return module + ext, true
		}
	}
	return "", false
}

// relativeSpecifier returns target relative to fromDir in forward-slash
// form, prefixed with "./" unless it already starts with a dot.
func relativeSpecifier(fromDir, target string) string {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		rel = target
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}
