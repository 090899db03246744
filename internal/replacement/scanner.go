package replacement

import (
	"regexp"
	"slices"
)

// Kind tells which construct a specifier was found in.
type Kind int

const (
	// KindCall is import('x') or require('x').
	KindCall Kind = iota
	// KindDeclaration is import 'x', import ... from 'x' or export ... from 'x'.
	KindDeclaration
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindDeclaration:
		return "declaration"
	default:
		return "unknown"
	}
}

// Occurrence is a specifier found in a file. Start and End are the byte
// offsets of the specifier text between its quotes.
type Occurrence struct {
	Start int
	End   int
	Value string
	Kind  Kind
}

// Scanner finds specifier occurrences in file content. Implementations must
// return occurrences sorted by Start and non-overlapping.
type Scanner interface {
	Scan(content []byte) []Occurrence
}

type scanPattern struct {
	re   *regexp.Regexp
	kind Kind
}

var defaultPatterns = []scanPattern{
	{regexp.MustCompile(`(?:import|require)\(['"]([^'"]*)['"]\)`), KindCall},
	{regexp.MustCompile(`(?:import|from) ['"]([^'"]*)['"]`), KindDeclaration},
}

// RegexScanner is a textual scanner. It does not understand comments or
// string contents, so a specifier-like string inside either is picked up too.
type RegexScanner struct {
	patterns []scanPattern
}

// NewRegexScanner returns a scanner for call-style and declarative imports.
func NewRegexScanner() *RegexScanner {
	return &RegexScanner{patterns: defaultPatterns}
}

// Scan returns the occurrences of every pattern, merged in offset order.
// Where two matches overlap, the one starting first is kept.
func (s *RegexScanner) Scan(content []byte) []Occurrence {
	var found []Occurrence
	for _, p := range s.patterns {
		for _, m := range p.re.FindAllSubmatchIndex(content, -1) {
			found = append(found, Occurrence{
				Start: m[2],
				End:   m[3],
				Value: string(content[m[2]:m[3]]),
				Kind:  p.kind,
			})
		}
	}

	slices.SortStableFunc(found, func(a, b Occurrence) int {
		return a.Start - b.Start
	})

	occurrences := found[:0]
	lastEnd := -1
	for _, o := range found {
		if o.Start < lastEnd {
			continue
		}
		occurrences = append(occurrences, o)
		lastEnd = o.End
	}
	return occurrences
}
