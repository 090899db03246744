// Package replacement rewrites aliased module specifiers in compiled output
// files. A Scanner locates specifiers and an Engine runs them through a
// middleware pipeline that resolves and substitutes them in place.
package replacement

import (
	"bytes"
	"fmt"

	"tscpaths/internal/alias"
)

// Replacement is a single rewritten specifier.
type Replacement struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Target        string `json:"target,omitempty"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	ByteOffset    int64  `json:"byte_offset"`
	NewByteOffset int64  `json:"new_byte_offset"`
}

// Unresolved is an aliased specifier for which no candidate module exists.
// It is left untouched in the file.
type Unresolved struct {
	Specifier string `json:"specifier"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

// FileResult is the outcome of rewriting one file. Content holds the new
// text and is only meaningful when Modified is true.
type FileResult struct {
	Path         string
	SourceFile   string
	Replacements []Replacement
	Unresolved   []Unresolved
	Modified     bool
	OriginalSize int64
	NewSize      int64
	Content      []byte
	// Error is set when the pipeline failed; the file must not be written.
	Error error
}

// Middleware is one step of the rewrite pipeline.
type Middleware func(ProcessContext) ProcessContext

// ProcessContext carries the state of one file through the pipeline. A
// middleware sets Done to stop the pipeline without an error.
type ProcessContext struct {
	FilePath    string
	Content     []byte
	Resolver    *alias.Resolver
	Scanner     Scanner
	Occurrences []Occurrence
	Resolutions []alias.Resolution
	Result      *FileResult
	Done        bool
	Error       error
}

// Engine runs the rewrite pipeline. It is safe for concurrent use as long
// as the resolver and scanner are.
type Engine struct {
	resolver   *alias.Resolver
	scanner    Scanner
	middleware []Middleware
}

// NewEngine creates an engine with the standard pipeline. A nil scanner
// uses NewRegexScanner.
func NewEngine(resolver *alias.Resolver, scanner Scanner) *Engine {
	if scanner == nil {
		scanner = NewRegexScanner()
	}
	engine := &Engine{
		resolver: resolver,
		scanner:  scanner,
	}

	engine.Use(validateInputMiddleware)
	engine.Use(detectSpecifiersMiddleware)
	engine.Use(resolveSpecifiersMiddleware)
	engine.Use(applyReplacementsMiddleware)
	engine.Use(validateOutputMiddleware)

	return engine
}

// Use appends a middleware to the pipeline.
func (e *Engine) Use(middleware Middleware) {
	e.middleware = append(e.middleware, middleware)
}

// Scanner returns the scanner the engine uses.
func (e *Engine) Scanner() Scanner {
	return e.scanner
}

// ProcessFile rewrites content, the text of the output file at filePath.
// The returned result is never nil; on a pipeline error it reports the file
// as unmodified and carries the error.
func (e *Engine) ProcessFile(filePath string, content []byte) *FileResult {
	ctx := ProcessContext{
		FilePath: filePath,
		Content:  content,
		Resolver: e.resolver,
		Scanner:  e.scanner,
		Result: &FileResult{
			Path:         filePath,
			OriginalSize: int64(len(content)),
			NewSize:      int64(len(content)),
		},
	}

	for _, mw := range e.middleware {
		ctx = mw(ctx)
		if ctx.Error != nil {
			ctx.Result.Modified = false
			ctx.Result.Content = nil
			ctx.Result.Replacements = nil
			ctx.Result.NewSize = ctx.Result.OriginalSize
			ctx.Result.Error = ctx.Error
			return ctx.Result
		}
		if ctx.Done {
			break
		}
	}

	return ctx.Result
}

func validateInputMiddleware(ctx ProcessContext) ProcessContext {
	if len(ctx.Content) == 0 || ctx.Resolver == nil || ctx.Resolver.Table().Len() == 0 {
		ctx.Done = true
	}
	return ctx
}

func detectSpecifiersMiddleware(ctx ProcessContext) ProcessContext {
	ctx.Occurrences = ctx.Scanner.Scan(ctx.Content)
	if len(ctx.Occurrences) == 0 {
		ctx.Done = true
	}
	return ctx
}

func resolveSpecifiersMiddleware(ctx ProcessContext) ProcessContext {
	ctx.Resolutions = make([]alias.Resolution, len(ctx.Occurrences))
	pos := newPositionTracker(ctx.Content)

	for i, occ := range ctx.Occurrences {
		res := ctx.Resolver.Resolve(occ.Value, ctx.FilePath)
		ctx.Resolutions[i] = res
		if !res.Matched() {
			continue
		}
		if ctx.Result.SourceFile == "" {
			ctx.Result.SourceFile = res.SourceFile
		}

		line, col := pos.at(occ.Start)
		switch {
		case !res.Resolved():
			ctx.Result.Unresolved = append(ctx.Result.Unresolved, Unresolved{
				Specifier: occ.Value,
				Line:      line,
				Column:    col,
			})
		case res.Changed():
			ctx.Result.Replacements = append(ctx.Result.Replacements, Replacement{
				From:       res.Original,
				To:         res.Specifier,
				Target:     res.Target,
				Line:       line,
				Column:     col,
				ByteOffset: int64(occ.Start),
			})
		}
	}

	if len(ctx.Result.Replacements) == 0 {
		ctx.Done = true
	}
	return ctx
}

func applyReplacementsMiddleware(ctx ProcessContext) ProcessContext {
	edits := make([]Edit, 0, len(ctx.Result.Replacements))
	for _, r := range ctx.Result.Replacements {
		edits = append(edits, Edit{Offset: int(r.ByteOffset), Old: r.From, New: r.To})
	}

	content, newOffsets, err := ApplyEdits(ctx.Content, edits)
	if err != nil {
		ctx.Error = fmt.Errorf("%s: %w", ctx.FilePath, err)
		return ctx
	}
	for i := range ctx.Result.Replacements {
		ctx.Result.Replacements[i].NewByteOffset = int64(newOffsets[i])
	}

	ctx.Result.Content = content
	ctx.Result.NewSize = int64(len(content))
	return ctx
}

func validateOutputMiddleware(ctx ProcessContext) ProcessContext {
	ctx.Result.Modified = !bytes.Equal(ctx.Result.Content, ctx.Content)
	if !ctx.Result.Modified {
		ctx.Result.Content = nil
		ctx.Result.NewSize = ctx.Result.OriginalSize
	}
	return ctx
}

// positionTracker converts increasing byte offsets to 1-based line and
// column numbers in a single pass.
type positionTracker struct {
	content   []byte
	offset    int
	line      int
	lineStart int
}

func newPositionTracker(content []byte) *positionTracker {
	return &positionTracker{content: content, line: 1}
}

func (p *positionTracker) at(offset int) (int, int) {
	for ; p.offset < offset && p.offset < len(p.content); p.offset++ {
		if p.content[p.offset] == '\n' {
			p.line++
			p.lineStart = p.offset + 1
		}
	}
	return p.line, offset - p.lineStart + 1
}
