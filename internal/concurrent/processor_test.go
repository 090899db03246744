package concurrent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscpaths/internal/alias"
	"tscpaths/internal/config"
	"tscpaths/internal/errors"
	"tscpaths/internal/filter"
	"tscpaths/internal/replacement"
)

type project struct {
	root string
	src  string
	out  string
}

func newProject(t *testing.T, files map[string]string) project {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return project{
		root: root,
		src:  filepath.Join(root, "src"),
		out:  filepath.Join(root, "dist"),
	}
}

func (p project) engine() *replacement.Engine {
	table := alias.NewTable([]alias.Entry{{Prefix: "@/", Candidates: []string{p.src}}})
	return replacement.NewEngine(alias.NewResolver(table, p.src, p.out, nil), nil)
}

func (p project) discover(t *testing.T) []filter.FileInfo {
	t.Helper()
	files, err := filter.NewFileDiscovery(&config.Config{}).Discover(p.out)
	require.NoError(t, err)
	return files
}

func (p project) read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

var sampleProject = map[string]string{
	"src/index.ts":          "",
	"src/lib/a.ts":          "",
	"src/lib/b/index.ts":    "",
	"dist/index.js":         "import a from '@/lib/a';\nconst b = require('@/lib/b/index');\n",
	"dist/lib/a.js":         "export const a = 1;\n",
	"dist/lib/b/index.js":   "import { a } from '@/lib/a';\nimport x from '@/missing';\n",
	"dist/vendor/plain.js":  "import fs from 'fs';\n",
	"dist/lib/b/index.d.ts": "export declare const b: number;\n",
}

func TestNewProcessor(t *testing.T) {
	p := newProject(t, nil)

	tests := []struct {
		name    string
		config  *config.Config
		workers int
	}{
		{
			name:    "default worker count",
			config:  &config.Config{},
			workers: min(runtime.NumCPU(), config.MaxWorkers),
		},
		{
			name:    "explicit worker count",
			config:  &config.Config{Workers: 3},
			workers: 3,
		},
		{
			name:    "sequential",
			config:  &config.Config{Workers: 1, Backup: true},
			workers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewProcessor(tt.config, p.engine())
			require.NotNil(t, processor)
			assert.Equal(t, tt.workers, processor.workerCount)
			assert.NotNil(t, processor.backupManager)
		})
	}
}

func TestProcessAll(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			p := newProject(t, sampleProject)
			files := p.discover(t)

			results, err := NewProcessor(&config.Config{Workers: workers}, p.engine()).ProcessAll(context.Background(), files)
			require.NoError(t, err)
			require.Len(t, results, len(files))

			for i, r := range results {
				assert.Equal(t, i, r.Job.Index)
				assert.Equal(t, files[i].Path, r.Job.FilePath)
				assert.NoError(t, r.Error)
			}

			assert.Equal(t, "import a from './lib/a';\nconst b = require('./lib/b/index');\n", p.read(t, "dist/index.js"))
			assert.Equal(t, "import { a } from '../a';\nimport x from '@/missing';\n", p.read(t, "dist/lib/b/index.js"))
			assert.Equal(t, "import fs from 'fs';\n", p.read(t, "dist/vendor/plain.js"))

			written := 0
			for _, r := range results {
				if r.Written {
					written++
					assert.True(t, r.Result.Modified)
				}
			}
			assert.Equal(t, 2, written)
		})
	}
}

func TestProcessAllIsIdempotent(t *testing.T) {
	p := newProject(t, sampleProject)
	processor := NewProcessor(&config.Config{}, p.engine())

	_, err := processor.ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)
	first := p.read(t, "dist/index.js")

	results, err := processor.ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.Written, r.Job.FilePath)
		assert.Empty(t, r.Result.Replacements, r.Job.FilePath)
	}
	assert.Equal(t, first, p.read(t, "dist/index.js"))
}

func TestProcessAllSkipsUnchangedFiles(t *testing.T) {
	p := newProject(t, sampleProject)
	plain := filepath.Join(p.out, "vendor", "plain.js")
	before, err := os.Stat(plain)
	require.NoError(t, err)

	_, err = NewProcessor(&config.Config{}, p.engine()).ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)

	after, err := os.Stat(plain)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestProcessAllDryRun(t *testing.T) {
	p := newProject(t, sampleProject)

	results, err := NewProcessor(&config.Config{DryRun: true, Backup: true}, p.engine()).ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)

	modified := 0
	for _, r := range results {
		assert.False(t, r.Written)
		assert.Empty(t, r.BackupPath)
		if r.Result.Modified {
			modified++
		}
	}
	assert.Equal(t, 2, modified)
	assert.Equal(t, sampleProject["dist/index.js"], p.read(t, "dist/index.js"))
}

func TestProcessAllBackup(t *testing.T) {
	p := newProject(t, sampleProject)

	results, err := NewProcessor(&config.Config{Backup: true}, p.engine()).ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)

	backups := 0
	for _, r := range results {
		if !r.Written {
			assert.Empty(t, r.BackupPath)
			continue
		}
		backups++
		require.NotEmpty(t, r.BackupPath)
		assert.True(t, strings.HasSuffix(r.BackupPath, ".bak"))

		original, err := os.ReadFile(r.BackupPath)
		require.NoError(t, err)
		rel, err := filepath.Rel(p.root, r.Job.FilePath)
		require.NoError(t, err)
		assert.Equal(t, sampleProject[filepath.ToSlash(rel)], string(original))
	}
	assert.Equal(t, 2, backups)
}

func TestProcessAllRecordsReadErrors(t *testing.T) {
	p := newProject(t, sampleProject)
	files := append(p.discover(t), filter.FileInfo{
		Path:    filepath.Join(p.out, "gone.js"),
		RelPath: "gone.js",
	})

	results, err := NewProcessor(&config.Config{}, p.engine()).ProcessAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	last := results[len(results)-1]
	require.Error(t, last.Error)
	var notFound *errors.FileNotFoundError
	assert.ErrorAs(t, last.Error, &notFound)
	assert.Nil(t, last.Result)

	// Other files are still rewritten.
	assert.Equal(t, "import a from './lib/a';\nconst b = require('./lib/b/index');\n", p.read(t, "dist/index.js"))
}

type misplacedScanner struct{}

func (misplacedScanner) Scan([]byte) []replacement.Occurrence {
	return []replacement.Occurrence{{Start: 0, End: 7, Value: "@/lib/a", Kind: replacement.KindDeclaration}}
}

func TestProcessAllRecordsRewriteErrors(t *testing.T) {
	p := newProject(t, sampleProject)
	table := alias.NewTable([]alias.Entry{{Prefix: "@/", Candidates: []string{p.src}}})
	engine := replacement.NewEngine(alias.NewResolver(table, p.src, p.out, nil), misplacedScanner{})

	results, err := NewProcessor(&config.Config{}, engine).ProcessAll(context.Background(), p.discover(t))
	require.NoError(t, err)

	failed := 0
	for _, r := range results {
		assert.False(t, r.Written, r.Job.FilePath)
		if r.Error != nil {
			failed++
		}
	}
	assert.Equal(t, len(results), failed)
	assert.Equal(t, sampleProject["dist/index.js"], p.read(t, "dist/index.js"))
}

func TestProcessAllCancelled(t *testing.T) {
	p := newProject(t, sampleProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewProcessor(&config.Config{}, p.engine()).ProcessAll(ctx, p.discover(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Equal(t, sampleProject["dist/index.js"], p.read(t, "dist/index.js"))
}

func TestWriteFileKeepsMode(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bin.js")
	require.NoError(t, os.WriteFile(file, []byte("old"), 0o755))
	require.NoError(t, os.Chmod(file, 0o755))

	require.NoError(t, writeFile(file, []byte("new")))

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = writeFile(filepath.Join(dir, "missing.js"), []byte("x"))
	assert.Error(t, err)
}
