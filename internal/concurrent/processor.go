// Package concurrent runs the rewrite over many output files with a bounded
// worker pool. Files are independent of each other, so they can be handled
// in any order; callers that need a stable order sort by ProcessJob.Index.
package concurrent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"tscpaths/internal/backup"
	"tscpaths/internal/config"
	"tscpaths/internal/errors"
	"tscpaths/internal/filter"
	"tscpaths/internal/replacement"
)

// ProcessJob is one file to rewrite. Index is its position in discovery order.
type ProcessJob struct {
	Index    int
	FilePath string
	FileInfo filter.FileInfo
}

// ProcessResult is the outcome of one job. Error is set when the file could
// not be read, backed up or written; other files are unaffected.
type ProcessResult struct {
	Job        ProcessJob
	Result     *replacement.FileResult
	BackupPath string
	Written    bool
	Error      error
}

// Processor rewrites files on a pool of at most workerCount goroutines.
type Processor struct {
	config        *config.Config
	engine        *replacement.Engine
	backupManager *backup.Manager
	workerCount   int
}

// NewProcessor creates a Processor. The pool size comes from cfg.Workers,
// defaulting to the number of CPUs capped at config.MaxWorkers.
func NewProcessor(cfg *config.Config, engine *replacement.Engine) *Processor {
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = min(runtime.NumCPU(), config.MaxWorkers)
	}

	return &Processor{
		config:        cfg,
		engine:        engine,
		backupManager: backup.NewBackupManager(cfg.ShouldCreateBackup()),
		workerCount:   workerCount,
	}
}

// ProcessFiles starts processing files and returns a channel that receives
// one result per file and is closed when all started jobs finished.
// Cancelling ctx stops new jobs from starting.
func (p *Processor) ProcessFiles(ctx context.Context, files []filter.FileInfo) (<-chan ProcessResult, error) {
	results := make(chan ProcessResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount)

	go func() {
		defer close(results)
		for i, fileInfo := range files {
			if gctx.Err() != nil {
				break
			}
			job := ProcessJob{Index: i, FilePath: fileInfo.Path, FileInfo: fileInfo}
			g.Go(func() error {
				results <- p.processFile(job)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results, nil
}

// ProcessAll processes files and returns the results in discovery order.
func (p *Processor) ProcessAll(ctx context.Context, files []filter.FileInfo) ([]ProcessResult, error) {
	ch, err := p.ProcessFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	results := make([]ProcessResult, 0, len(files))
	for r := range ch {
		results = append(results, r)
	}
	slices.SortFunc(results, func(a, b ProcessResult) int {
		return a.Job.Index - b.Job.Index
	})

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Processor) processFile(job ProcessJob) ProcessResult {
	result := ProcessResult{
		Job: job,
	}

	content, err := os.ReadFile(job.FilePath)
	if err != nil {
		result.Error = errors.WrapFileError(job.FilePath, err)
		return result
	}

	fileResult := p.engine.ProcessFile(job.FilePath, content)
	result.Result = fileResult
	if fileResult.Error != nil {
		result.Error = fileResult.Error
		return result
	}

	if !fileResult.Modified || p.config.DryRun {
		return result
	}

	if p.config.ShouldCreateBackup() {
		backupPath, backupErr := p.backupManager.BackupFile(job.FilePath)
		if backupErr != nil {
			result.Error = backupErr
			return result
		}
		result.BackupPath = backupPath
	}

	if err := writeFile(job.FilePath, fileResult.Content); err != nil {
		if result.BackupPath != "" {
			_ = p.backupManager.RestoreFile(job.FilePath, result.BackupPath)
		}
		result.Error = err
		return result
	}
	result.Written = true

	return result
}

// writeFile replaces filePath with content through a temporary file in the
// same directory, keeping the original permissions.
func writeFile(filePath string, content []byte) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return errors.WrapFileError(filePath, err)
	}

	file, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}
	tempFile := file.Name()
	defer os.Remove(tempFile)
	defer file.Close()

	if _, err := file.Write(content); err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}

	if err := file.Sync(); err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}

	if err := file.Close(); err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}

	if err := os.Chmod(tempFile, info.Mode().Perm()); err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		return errors.NewFileNotWritableError(filePath, err)
	}

	return nil
}
