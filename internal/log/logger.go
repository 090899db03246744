// Package log reports what a tscpaths run did: an optional per-file trace
// while files are processed, and a final report as a summary line, JSON or
// CSV. JSON and CSV reports can be fed back to --revert and --apply.
package log

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"tscpaths/internal/alias"
	"tscpaths/internal/backup"
	"tscpaths/internal/concurrent"
	"tscpaths/internal/config"
	"tscpaths/internal/errors"
	"tscpaths/internal/replacement"
	"tscpaths/internal/tsconfig"
)

// Entry is the report record of one processed file.
type Entry struct {
	Timestamp    string                    `json:"timestamp"`
	FilePath     string                    `json:"file_path"`
	SourceFile   string                    `json:"source_file,omitempty"`
	OriginalSize int64                     `json:"original_size"`
	NewSize      int64                     `json:"new_size"`
	Modified     bool                      `json:"modified"`
	Replacements []replacement.Replacement `json:"replacements,omitempty"`
	Unresolved   []replacement.Unresolved  `json:"unresolved,omitempty"`
	BackupPath   string                    `json:"backup_path,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// Summary holds the run totals.
type Summary struct {
	TotalFiles        int           `json:"total_files"`
	ModifiedFiles     int           `json:"modified_files"`
	TotalReplacements int           `json:"total_replacements"`
	Unresolved        int           `json:"unresolved"`
	ErrorCount        int           `json:"error_count"`
	ProcessingTime    time.Duration `json:"processing_time,format:nano"`
	DryRun            bool          `json:"dry_run"`
}

// Logger accumulates entries and totals and writes the trace and report.
// It is not safe for concurrent use; feed it from a single goroutine.
type Logger struct {
	config   *config.Config
	writer   io.Writer
	basePath string
	entries  []Entry
	summary  Summary
}

// NewLogger creates a Logger writing to cfg.LogFile, or stdout when unset.
func NewLogger(cfg *config.Config) (*Logger, error) {
	var writer io.Writer = os.Stdout

	if cfg.LogFile != "" {
		file, err := os.Create(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file %s: %w", cfg.LogFile, err)
		}
		writer = file
	}

	return NewLoggerWithWriter(cfg, writer), nil
}

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(cfg *config.Config, w io.Writer) *Logger {
	return &Logger{
		config:  cfg,
		writer:  w,
		entries: []Entry{},
		summary: Summary{
			DryRun: cfg.DryRun,
		},
	}
}

// LogConfig prints the resolved project settings in verbose mode and sets
// the directory trace paths are shown relative to.
func (l *Logger) LogConfig(resolved *tsconfig.ResolvedConfig, table *alias.Table) {
	l.basePath = resolved.BaseDirectory
	if !l.config.IsVerbose() {
		return
	}

	fmt.Fprintf(l.writer, "baseUrl: %s\n", resolved.BaseURL)
	fmt.Fprintf(l.writer, "outDir: %s\n", resolved.OutDir)
	fmt.Fprintf(l.writer, "basePath: %s\n", resolved.BaseDirectory)
	fmt.Fprintf(l.writer, "srcPath: %s\n", resolved.SourceRoot)
	fmt.Fprintf(l.writer, "outPath: %s\n", resolved.OutputDirectory)

	if l.config.IsDebug() {
		for _, e := range table.Entries() {
			fmt.Fprintf(l.writer, "alias: %s\n", e.Prefix)
			for _, c := range e.Candidates {
				fmt.Fprintf(l.writer, "\t%s\n", l.rel(c))
			}
		}
	}
}

// LogResult records the outcome of one file and prints its trace.
func (l *Logger) LogResult(result concurrent.ProcessResult) {
	entry := Entry{
		Timestamp:  time.Now().Format(time.RFC3339),
		FilePath:   result.Job.FilePath,
		BackupPath: result.BackupPath,
	}

	if result.Result != nil {
		entry.SourceFile = result.Result.SourceFile
		entry.OriginalSize = result.Result.OriginalSize
		entry.NewSize = result.Result.NewSize
		entry.Modified = result.Result.Modified
		entry.Unresolved = result.Result.Unresolved
		l.summary.Unresolved += len(result.Result.Unresolved)

		if result.Result.Modified {
			entry.Replacements = result.Result.Replacements
		}
	}

	if result.Error != nil {
		entry.Error = result.Error.Error()
		entry.Modified = false
		entry.Replacements = nil
		l.summary.ErrorCount++
	} else if entry.Modified {
		l.summary.ModifiedFiles++
		l.summary.TotalReplacements += len(entry.Replacements)
	}

	l.entries = append(l.entries, entry)
	l.summary.TotalFiles++

	if l.config.IsVerbose() {
		l.logVerbose(entry)
	} else if l.config.ShouldLog() {
		l.logBasic(entry)
	}
}

// SetProcessingTime records the total run duration.
func (l *Logger) SetProcessingTime(duration time.Duration) {
	l.summary.ProcessingTime = duration
}

// Summary returns the totals recorded so far.
func (l *Logger) Summary() Summary {
	return l.summary
}

// Entries returns the recorded entries in the order they were logged.
func (l *Logger) Entries() []Entry {
	return l.entries
}

// WriteReport writes the final report in the configured format.
func (l *Logger) WriteReport() error {
	if l.config.Quiet {
		return nil
	}

	switch l.config.LogFormat {
	case config.LogFormatJSON:
		return l.writeJSONReport()
	case config.LogFormatCSV:
		return l.writeCSVReport()
	default:
		return l.writeSummaryReport()
	}
}

func (l *Logger) logVerbose(entry Entry) {
	if entry.Error != "" {
		fmt.Fprintf(l.writer, "ERROR: %s - %s\n", l.rel(entry.FilePath), entry.Error)
		return
	}

	if len(entry.Replacements) == 0 && len(entry.Unresolved) == 0 {
		if l.config.IsDebug() {
			fmt.Fprintf(l.writer, "%s: no aliases\n", l.rel(entry.FilePath))
		}
		return
	}

	fmt.Fprintf(l.writer, "%s (source: %s):\n", l.rel(entry.FilePath), l.rel(entry.SourceFile))
	for _, r := range entry.Replacements {
		if l.config.IsDebug() {
			fmt.Fprintf(l.writer, "\t%d:%d ", r.Line, r.Column)
		} else {
			fmt.Fprint(l.writer, "\t")
		}
		fmt.Fprintf(l.writer, "replacing '%s' -> '%s' referencing %s\n", r.From, r.To, l.rel(r.Target))
	}
	for _, u := range entry.Unresolved {
		fmt.Fprintln(l.writer, l.unresolved(entry, u).Message)
	}
}

func (l *Logger) logBasic(entry Entry) {
	if entry.Error != "" {
		fmt.Fprintf(l.writer, "ERROR: %s - %s\n", l.rel(entry.FilePath), entry.Error)
	}
	for _, u := range entry.Unresolved {
		err := l.unresolved(entry, u)
		fmt.Fprintf(l.writer, "%s in %s\n", err.Message, err.Path)
	}
}

func (l *Logger) unresolved(entry Entry, u replacement.Unresolved) *errors.ResolutionError {
	return errors.NewResolutionError(l.rel(entry.FilePath), u.Specifier)
}

// rel shows path relative to the base directory when it lies below it.
func (l *Logger) rel(path string) string {
	if l.basePath == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(l.basePath, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (l *Logger) writeJSONReport() error {
	report := struct {
		Summary Summary `json:"summary"`
		Entries []Entry `json:"entries"`
	}{
		Summary: l.summary,
		Entries: l.entries,
	}

	if err := json.MarshalWrite(l.writer, report, jsontext.WithIndent("  ")); err != nil {
		return err
	}
	_, err := io.WriteString(l.writer, "\n")
	return err
}

func (l *Logger) writeCSVReport() error {
	writer := csv.NewWriter(l.writer)

	if err := writer.Write(backup.CSVHeader); err != nil {
		return err
	}

	for _, entry := range l.entries {
		for _, repl := range entry.Replacements {
			record := []string{
				entry.FilePath,
				repl.From,
				repl.To,
				strconv.Itoa(repl.Line),
				strconv.Itoa(repl.Column),
				strconv.FormatInt(repl.ByteOffset, 10),
				strconv.FormatInt(repl.NewByteOffset, 10),
				repl.Target,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Fprintf(l.writer, "# %s\n", l.summaryLine())
	fmt.Fprintf(l.writer, "# Files processed: %d\n", l.summary.TotalFiles)
	fmt.Fprintf(l.writer, "# Unresolved specifiers: %d\n", l.summary.Unresolved)
	fmt.Fprintf(l.writer, "# Errors: %d\n", l.summary.ErrorCount)
	fmt.Fprintf(l.writer, "# Processing time: %v\n", l.summary.ProcessingTime)

	return nil
}

func (l *Logger) writeSummaryReport() error {
	if l.summary.ErrorCount > 0 {
		fmt.Fprintf(l.writer, "\nErrors encountered:\n")
		for _, entry := range l.entries {
			if entry.Error != "" {
				fmt.Fprintf(l.writer, "  %s: %s\n", entry.FilePath, entry.Error)
			}
		}
	}

	_, err := fmt.Fprintln(l.writer, l.summaryLine())
	return err
}

func (l *Logger) summaryLine() string {
	line := fmt.Sprintf("Replaced %d paths in %d files", l.summary.TotalReplacements, l.summary.ModifiedFiles)
	if l.summary.DryRun {
		line += " (dry run)"
	}
	return line
}

// Close closes the log file, if any. Stdout is never closed.
func (l *Logger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stdout {
		return closer.Close()
	}
	return nil
}
