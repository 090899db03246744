// Package tsconfig loads the compiler options tscpaths needs from a
// tsconfig.json file, following its "extends" chain.
//
// Files may contain comments and trailing commas. The "paths" object is
// decoded in declaration order because alias priority depends on it.
package tsconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tidwall/jsonc"

	"tscpaths/internal/errors"
)

// PathMapping is one entry of compilerOptions.paths: an alias pattern and
// its candidate path patterns, in the order they were declared.
type PathMapping struct {
	Pattern    string
	Candidates []string
}

// Paths is the ordered content of compilerOptions.paths. A nil Paths means
// the option was never declared; an empty non-nil Paths means "{}".
type Paths []PathMapping

// UnmarshalJSONFrom decodes a JSON object while keeping member order, which
// a Go map would lose.
func (p *Paths) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != '{' {
		return fmt.Errorf("compilerOptions.paths must be an object, got %v", tok.Kind())
	}

	mappings := Paths{}
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		// The token is only valid until the decoder moves on.
		pattern := tok.String()

		var candidates []string
		if err := json.UnmarshalDecode(dec, &candidates); err != nil {
			return fmt.Errorf("compilerOptions.paths[%q]: %w", pattern, err)
		}
		// A repeated key keeps its first position and takes the last value.
		if i := slices.IndexFunc(mappings, func(m PathMapping) bool { return m.Pattern == pattern }); i >= 0 {
			mappings[i].Candidates = candidates
			continue
		}
		mappings = append(mappings, PathMapping{Pattern: pattern, Candidates: candidates})
	}
	if _, err := dec.ReadToken(); err != nil {
		return err
	}

	*p = mappings
	return nil
}

// Extends holds the "extends" references of a config file. Both the single
// string form and the array form are accepted.
type Extends []string

// UnmarshalJSONFrom accepts null, a string or an array of strings.
func (e *Extends) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	switch dec.PeekKind() {
	case 'n':
		*e = nil
		return dec.SkipValue()
	case '"':
		var ref string
		if err := json.UnmarshalDecode(dec, &ref); err != nil {
			return err
		}
		*e = Extends{ref}
		return nil
	case '[':
		var refs []string
		if err := json.UnmarshalDecode(dec, &refs); err != nil {
			return err
		}
		*e = refs
		return nil
	default:
		return fmt.Errorf("extends must be a string or an array of strings")
	}
}

type rawConfig struct {
	Extends         Extends          `json:"extends"`
	CompilerOptions *compilerOptions `json:"compilerOptions"`
}

type compilerOptions struct {
	BaseURL string `json:"baseUrl"`
	OutDir  string `json:"outDir"`
	Paths   *Paths `json:"paths"`
}

// Config is the result of merging a project file with everything it
// extends. BaseURL and OutDir are kept exactly as written; they are made
// absolute by Resolve.
type Config struct {
	Path    string
	BaseURL string
	OutDir  string
	Paths   Paths

	// Files lists every file that contributed, parents before children.
	Files []string
}

// Load reads the project file at path and resolves its extends chain.
// Parents are merged first; every option a child declares overrides the
// inherited value. An extends chain that loops back on itself is an error.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewConfigErrorWithPath(path, "invalid project path", err)
	}
	return load(absPath, nil)
}

func load(path string, chain []string) (*Config, error) {
	if slices.Contains(chain, path) {
		cycle := append(slices.Clone(chain), path)
		return nil, errors.NewConfigErrorWithPath(path,
			"circular extends: "+strings.Join(cycle, " -> "), nil)
	}
	chain = append(slices.Clone(chain), path)

	raw, err := readRawConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Path: path}
	dir := filepath.Dir(path)

	for _, ref := range raw.Extends {
		parentPath, err := resolveExtends(dir, ref)
		if err != nil {
			return nil, err
		}
		parent, err := load(parentPath, chain)
		if err != nil {
			return nil, err
		}
		cfg.overlay(parent.BaseURL, parent.OutDir, parent.Paths)
		cfg.Files = append(cfg.Files, parent.Files...)
	}

	if co := raw.CompilerOptions; co != nil {
		var paths Paths
		if co.Paths != nil {
			paths = *co.Paths
		}
		cfg.overlay(co.BaseURL, co.OutDir, paths)
	}
	cfg.Files = append(cfg.Files, path)

	return cfg, nil
}

// overlay copies every declared value over the current one.
func (c *Config) overlay(baseURL, outDir string, paths Paths) {
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if outDir != "" {
		c.OutDir = outDir
	}
	if paths != nil {
		c.Paths = paths
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readRawConfig(path string) (*rawConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigErrorWithPath(path, "project file not found", err)
		}
		return nil, errors.NewConfigErrorWithPath(path, "project file not readable", errors.WrapFileError(path, err))
	}

	// tsc strips a leading byte order mark and keeps the last of duplicate keys.
	content = bytes.TrimPrefix(content, utf8BOM)

	var raw rawConfig
	if err := json.Unmarshal(jsonc.ToJSON(content), &raw, jsontext.AllowDuplicateNames(true)); err != nil {
		return nil, errors.NewConfigErrorWithPath(path, "project file is not valid JSON",
			errors.NewParsingError(path, err.Error(), err))
	}
	return &raw, nil
}

// resolveExtends finds the file an extends reference points to. Relative
// and absolute references are resolved against dir; bare names are tried
// against dir first and then in node_modules directories up the tree.
func resolveExtends(dir, ref string) (string, error) {
	if ref == "" {
		return "", errors.NewConfigErrorWithPath(dir, "empty extends reference", nil)
	}

	var candidates []string
	if filepath.IsAbs(ref) {
		candidates = withJSONSuffix(ref)
	} else {
		candidates = withJSONSuffix(filepath.Join(dir, ref))
		if !isRelativeRef(ref) {
			for d := dir; ; d = filepath.Dir(d) {
				base := filepath.Join(d, "node_modules", ref)
				candidates = append(candidates, withJSONSuffix(base)...)
				candidates = append(candidates, filepath.Join(base, "tsconfig.json"))
				if filepath.Dir(d) == d {
					break
				}
			}
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", errors.NewConfigErrorWithPath(filepath.Join(dir, ref), "extended config not found", nil)
}

func isRelativeRef(ref string) bool {
	ref = filepath.ToSlash(ref)
	return ref == "." || ref == ".." || strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../")
}

func withJSONSuffix(p string) []string {
	if strings.HasSuffix(p, ".json") {
		return []string{p}
	}
	return []string{p, p + ".json"}
}

// ResolvedConfig is the frozen configuration of a run: every directory is
// absolute and every required option is present.
type ResolvedConfig struct {
	ConfigPath      string
	BaseURL         string
	OutDir          string
	BaseDirectory   string
	SourceRoot      string
	OutputDirectory string
	Paths           Paths
}

// Resolve checks that baseUrl, paths and outDir are all set and turns them
// into absolute directories. BaseURL and OutDir are relative to the project
// file's directory. sourceRoot and outputRoot override the source root and
// the output directory when non-empty.
func (c *Config) Resolve(sourceRoot, outputRoot string) (*ResolvedConfig, error) {
	switch {
	case c.BaseURL == "":
		return nil, errors.NewConfigErrorWithPath(c.Path, "compilerOptions.baseUrl is not set", nil)
	case c.Paths == nil:
		return nil, errors.NewConfigErrorWithPath(c.Path, "compilerOptions.paths is not set", nil)
	case c.OutDir == "":
		return nil, errors.NewConfigErrorWithPath(c.Path, "compilerOptions.outDir is not set", nil)
	}

	configDir := filepath.Dir(c.Path)
	resolved := &ResolvedConfig{
		ConfigPath:      c.Path,
		BaseURL:         c.BaseURL,
		OutDir:          c.OutDir,
		BaseDirectory:   absJoin(configDir, c.BaseURL),
		OutputDirectory: absJoin(configDir, c.OutDir),
		Paths:           c.Paths,
	}
	resolved.SourceRoot = resolved.BaseDirectory

	if sourceRoot != "" {
		resolved.SourceRoot = absJoin(configDir, sourceRoot)
	}
	if outputRoot != "" {
		resolved.OutputDirectory = absJoin(configDir, outputRoot)
	}
	return resolved, nil
}

func absJoin(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
