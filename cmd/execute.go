// Package cmd implements the tscpaths command line. It wires the tsconfig
// loader, alias resolver, rewrite engine and worker pool together and
// reports the outcome.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"tscpaths/internal/alias"
	"tscpaths/internal/backup"
	"tscpaths/internal/concurrent"
	"tscpaths/internal/config"
	"tscpaths/internal/filter"
	"tscpaths/internal/log"
	"tscpaths/internal/replacement"
	"tscpaths/internal/tsconfig"
)

// execute runs one rewrite, revert or apply pass for a validated config.
func execute(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Revert {
		return executeRevert(cfg, os.Stdout)
	}

	if cfg.Apply {
		return executeApply(cfg, os.Stdout)
	}

	return executeRewrite(ctx, cfg)
}

func executeRewrite(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	project, err := tsconfig.Load(cfg.Project)
	if err != nil {
		return err
	}

	resolved, err := project.Resolve(cfg.SourceRoot, cfg.OutputRoot)
	if err != nil {
		return err
	}

	table := alias.BuildTable(resolved.Paths, resolved.BaseDirectory)

	exists, err := alias.NewCachedExists(cfg.CacheSize, alias.OSExists)
	if err != nil {
		return err
	}
	resolver := alias.NewResolver(table, resolved.SourceRoot, resolved.OutputDirectory, exists)
	engine := replacement.NewEngine(resolver, replacement.NewRegexScanner())

	discovery := filter.NewFileDiscovery(cfg)
	files, err := discovery.Discover(resolved.OutputDirectory)
	if err != nil {
		return err
	}

	logger, err := log.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.LogConfig(resolved, table)

	processor := concurrent.NewProcessor(cfg, engine)
	results, err := processor.ProcessAll(ctx, files)
	for _, result := range results {
		logger.LogResult(result)
	}
	if err != nil {
		return err
	}

	logger.SetProcessingTime(time.Since(startTime))
	if err := logger.WriteReport(); err != nil {
		return err
	}

	if failed := logger.Summary().ErrorCount; failed > 0 {
		return fmt.Errorf("%d of %d files could not be processed", failed, len(files))
	}
	return nil
}

func executeRevert(cfg *config.Config, out io.Writer) error {
	revertManager := backup.NewRevertManager()
	n, err := revertManager.RevertFromLogWithFormat(cfg.LogFile, string(cfg.LogFormat))
	if err != nil {
		return err
	}

	if cfg.ShouldLog() {
		fmt.Fprintf(out, "Reverted %d files\n", n)
	}
	return nil
}

func executeApply(cfg *config.Config, out io.Writer) error {
	applyManager := backup.NewApplyManager()
	n, err := applyManager.ApplyFromLogWithFormat(cfg.LogFile, string(cfg.LogFormat))
	if err != nil {
		return err
	}

	if cfg.ShouldLog() {
		fmt.Fprintf(out, "Applied %d files\n", n)
	}
	return nil
}
