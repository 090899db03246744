// Package config holds the run options for tscpaths and validates them
// before any project file or output file is read.
package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"tscpaths/internal/errors"
)

// LogFormat selects how the run report is rendered.
type LogFormat string

// Supported report formats. Text prints the one-line summary; JSON and CSV
// produce machine-readable reports that --revert and --apply can consume.
const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatCSV  LogFormat = "csv"
)

// DefaultInclude matches every compiled output file the rewriter understands.
const DefaultInclude = "**/*.{js,jsx,ts,tsx}"

// MaxWorkers caps the default worker pool size.
const MaxWorkers = 8

// Config holds all runtime options for a tscpaths run.
type Config struct {
	Project    string
	SourceRoot string
	OutputRoot string
	Include    []string
	Exclude    []string
	ExcludeDir []string
	Workers    int
	CacheSize  int
	DryRun     bool
	Revert     bool
	Apply      bool
	Backup     bool
	Verbose    bool
	Debug      bool
	Quiet      bool
	LogFile    string
	LogFormat  LogFormat
}

// Validate checks required options, makes paths absolute and fills defaults.
// It must succeed before the project configuration is loaded.
func (c *Config) Validate() error {
	if c.Revert || c.Apply {
		if c.LogFile == "" {
			return errors.NewConfigError("log file is required for revert or apply (use --log)", nil)
		}
	} else {
		if err := c.validateProject(); err != nil {
			return err
		}
		if err := c.validateRoots(); err != nil {
			return err
		}
	}

	if err := c.validateLogFormat(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return errors.NewConfigError("workers must not be negative", nil)
	}

	c.normalizeConfig()
	return nil
}

func (c *Config) validateProject() error {
	if c.Project == "" {
		return errors.NewConfigError("project is required (use --project)", nil)
	}

	absProject, err := filepath.Abs(c.Project)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.Project, "invalid project path", err)
	}
	c.Project = absProject
	return nil
}

func (c *Config) validateRoots() error {
	if c.SourceRoot == "" {
		return errors.NewConfigError("source root is required (use --src)", nil)
	}

	absSrc, err := filepath.Abs(c.SourceRoot)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.SourceRoot, "invalid source root", err)
	}
	c.SourceRoot = absSrc

	if c.OutputRoot != "" {
		absOut, err := filepath.Abs(c.OutputRoot)
		if err != nil {
			return errors.NewConfigErrorWithPath(c.OutputRoot, "invalid output root", err)
		}
		c.OutputRoot = absOut
	}
	return nil
}

func (c *Config) validateLogFormat() error {
	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON, LogFormatCSV:
		return nil
	default:
		return errors.NewConfigError("log format must be 'text', 'json' or 'csv'", nil)
	}
}

func (c *Config) normalizeConfig() {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
		if c.Revert || c.Apply {
			c.LogFormat = LogFormatJSON
		}
	}
	if c.Workers == 0 {
		c.Workers = min(runtime.NumCPU(), MaxWorkers)
	}
	c.Include = normalizePatterns(c.Include)
	if len(c.Include) == 0 {
		c.Include = []string{DefaultInclude}
	}
	c.Exclude = normalizePatterns(c.Exclude)
}

// normalizePatterns trims patterns, drops empty ones and converts them to
// the slash-separated form the file walker matches against.
func normalizePatterns(patterns []string) []string {
	var normalized []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		normalized = append(normalized, strings.TrimPrefix(filepath.ToSlash(p), "./"))
	}
	return normalized
}

// IsVerbose reports whether the per-file trace is printed. Quiet wins.
func (c *Config) IsVerbose() bool {
	return (c.Verbose || c.Debug) && !c.Quiet
}

// IsDebug reports whether debug output is enabled. Quiet wins.
func (c *Config) IsDebug() bool {
	return c.Debug && !c.Quiet
}

// ShouldLog reports whether anything should be written to the report.
func (c *Config) ShouldLog() bool {
	return !c.Quiet
}

// ShouldCreateBackup reports whether a .bak copy is written before a file
// is overwritten. Dry runs never write, so they never back up either.
func (c *Config) ShouldCreateBackup() bool {
	return c.Backup && !c.DryRun
}
