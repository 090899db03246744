package tsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscpaths/internal/errors"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tsconfig.json", `{
		// comments and trailing commas are fine
		"compilerOptions": {
			"baseUrl": "src",
			"outDir": "dist",
			"paths": {
				"@utils/*": ["utils/*", "shared/utils/*"],
				"@app/*": ["app/*"],
				"~": ["root"],
			},
		},
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "src", cfg.BaseURL)
	assert.Equal(t, "dist", cfg.OutDir)
	want := Paths{
		{Pattern: "@utils/*", Candidates: []string{"utils/*", "shared/utils/*"}},
		{Pattern: "@app/*", Candidates: []string{"app/*"}},
		{Pattern: "~", Candidates: []string{"root"}},
	}
	if diff := cmp.Diff(want, cfg.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{path}, cfg.Files)
}

func TestLoadSinglePathsEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tsconfig.json",
		`{"compilerOptions":{"baseUrl":".","outDir":"dist","paths":{"@/*":["src/*"]}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Paths{{Pattern: "@/*", Candidates: []string{"src/*"}}}, cfg.Paths)
}

func TestLoadByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tsconfig.json",
		"\ufeff"+`{"compilerOptions": {"baseUrl": ".", "paths": {"@/*": ["src/*"]}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.BaseURL)
	assert.Len(t, cfg.Paths, 1)
}

func TestLoadDuplicateKeysLastWins(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tsconfig.json", `{"compilerOptions": {
		"baseUrl": ".",
		"baseUrl": "src",
		"paths": {"@a/*": ["a/*"], "@b/*": ["b/*"], "@a/*": ["other/*"]}
	}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.BaseURL)
	want := Paths{
		{Pattern: "@a/*", Candidates: []string{"other/*"}},
		{Pattern: "@b/*", Candidates: []string{"b/*"}},
	}
	if diff := cmp.Diff(want, cfg.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tsconfig.json", `{"compilerOptions": {"paths": {
		"z/*": ["z"], "a/*": ["a"], "m/*": ["m"], "b/*": ["b"]
	}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	var patterns []string
	for _, m := range cfg.Paths {
		patterns = append(patterns, m.Pattern)
	}
	assert.Equal(t, []string{"z/*", "a/*", "m/*", "b/*"}, patterns)
}

func TestMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "configs/base.json", `{
		"compilerOptions": {"baseUrl": "src", "outDir": "build", "paths": {"@a/*": ["a/*"]}}
	}`)

	t.Run("child inherits and overrides", func(t *testing.T) {
		child := writeConfig(t, dir, "tsconfig.json", `{
			"extends": "./configs/base.json",
			"compilerOptions": {"outDir": "dist"}
		}`)
		cfg, err := Load(child)
		require.NoError(t, err)

		assert.Equal(t, "src", cfg.BaseURL)
		assert.Equal(t, "dist", cfg.OutDir)
		assert.Equal(t, Paths{{Pattern: "@a/*", Candidates: []string{"a/*"}}}, cfg.Paths)
		assert.Equal(t, []string{filepath.Join(dir, "configs/base.json"), child}, cfg.Files)
	})

	t.Run("child redeclares baseUrl", func(t *testing.T) {
		child := writeConfig(t, dir, "tsconfig.child.json", `{
			"extends": "./configs/base",
			"compilerOptions": {"baseUrl": "lib", "outDir": "dist"}
		}`)
		cfg, err := Load(child)
		require.NoError(t, err)

		assert.Equal(t, "lib", cfg.BaseURL)
		assert.Equal(t, "dist", cfg.OutDir)
	})

	t.Run("child paths replace parent paths", func(t *testing.T) {
		child := writeConfig(t, dir, "tsconfig.paths.json", `{
			"extends": "./configs/base.json",
			"compilerOptions": {"paths": {}}
		}`)
		cfg, err := Load(child)
		require.NoError(t, err)

		assert.NotNil(t, cfg.Paths)
		assert.Empty(t, cfg.Paths)
	})

	t.Run("empty string does not override", func(t *testing.T) {
		child := writeConfig(t, dir, "tsconfig.empty.json", `{
			"extends": "./configs/base.json",
			"compilerOptions": {"baseUrl": ""}
		}`)
		cfg, err := Load(child)
		require.NoError(t, err)

		assert.Equal(t, "src", cfg.BaseURL)
	})
}

func TestExtendsChainAndArray(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.json", `{"compilerOptions": {"baseUrl": "from-a", "outDir": "out-a"}}`)
	writeConfig(t, dir, "b.json", `{"extends": "./a.json", "compilerOptions": {"outDir": "out-b"}}`)
	writeConfig(t, dir, "c.json", `{"compilerOptions": {"paths": {"@c/*": ["c/*"]}, "outDir": "out-c"}}`)
	root := writeConfig(t, dir, "tsconfig.json", `{"extends": ["./b.json", "./c.json"]}`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "from-a", cfg.BaseURL)
	assert.Equal(t, "out-c", cfg.OutDir)
	assert.Len(t, cfg.Paths, 1)
	assert.Len(t, cfg.Files, 4)
}

func TestExtendsFromNodeModules(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "node_modules/@tsconfig/strict/tsconfig.json", `{"compilerOptions": {"baseUrl": "."}}`)
	root := writeConfig(t, dir, "packages/app/tsconfig.json", `{
		"extends": "@tsconfig/strict",
		"compilerOptions": {"outDir": "dist", "paths": {}}
	}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.BaseURL)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "loop-a.json", `{"extends": "./loop-b.json"}`)
	writeConfig(t, dir, "loop-b.json", `{"extends": "./loop-a.json"}`)
	writeConfig(t, dir, "self.json", `{"extends": "./self.json"}`)
	writeConfig(t, dir, "broken.json", `{"compilerOptions": `)
	writeConfig(t, dir, "bad-paths.json", `{"compilerOptions": {"paths": ["x"]}}`)
	writeConfig(t, dir, "missing-parent.json", `{"extends": "./nowhere.json"}`)

	tests := []struct {
		name string
		file string
	}{
		{"missing file", "does-not-exist.json"},
		{"two file cycle", "loop-a.json"},
		{"self reference", "self.json"},
		{"invalid json", "broken.json"},
		{"paths not an object", "bad-paths.json"},
		{"missing parent", "missing-parent.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(filepath.Join(dir, tt.file))
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "expected config error, got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{
		Path:    "/proj/tsconfig.json",
		BaseURL: "src",
		OutDir:  "./dist",
		Paths:   Paths{{Pattern: "@/*", Candidates: []string{"*"}}},
	}

	resolved, err := cfg.Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/proj/src"), resolved.BaseDirectory)
	assert.Equal(t, filepath.FromSlash("/proj/src"), resolved.SourceRoot)
	assert.Equal(t, filepath.FromSlash("/proj/dist"), resolved.OutputDirectory)
	assert.Equal(t, cfg.Paths, resolved.Paths)

	resolved, err = cfg.Resolve("/elsewhere/src", "/elsewhere/out")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/proj/src"), resolved.BaseDirectory)
	assert.Equal(t, filepath.FromSlash("/elsewhere/src"), resolved.SourceRoot)
	assert.Equal(t, filepath.FromSlash("/elsewhere/out"), resolved.OutputDirectory)
}

func TestResolveMissingOptions(t *testing.T) {
	paths := Paths{}
	tests := []struct {
		name    string
		config  Config
		message string
	}{
		{"missing baseUrl", Config{OutDir: "dist", Paths: paths}, "compilerOptions.baseUrl is not set"},
		{"missing paths", Config{BaseURL: "src", OutDir: "dist"}, "compilerOptions.paths is not set"},
		{"missing outDir", Config{BaseURL: "src", Paths: paths}, "compilerOptions.outDir is not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Path = "/proj/tsconfig.json"
			_, err := tt.config.Resolve("", "")
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
