// Package backup keeps .bak copies of rewritten output files and can undo
// or replay a run from its JSON or CSV report.
package backup

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-json-experiment/json"

	"tscpaths/internal/errors"
	"tscpaths/internal/replacement"
)

// Manager creates and restores backup copies.
type Manager struct {
	enabled bool
}

// NewBackupManager creates a Manager. A disabled manager makes BackupFile a
// no-op.
func NewBackupManager(enabled bool) *Manager {
	return &Manager{
		enabled: enabled,
	}
}

// BackupFile copies filePath next to itself with a timestamped .bak name
// and returns the backup path, or "" when backups are disabled.
func (bm *Manager) BackupFile(filePath string) (string, error) {
	if !bm.enabled {
		return "", nil
	}

	backupPath := generateBackupPath(filePath)
	if err := copyFile(filePath, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", errors.NewBackupError(filePath, "failed to create backup", err)
	}

	return backupPath, nil
}

// RestoreFile overwrites originalPath with the content of backupPath.
func (bm *Manager) RestoreFile(originalPath, backupPath string) error {
	if backupPath == "" {
		return nil
	}

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return errors.NewBackupError(backupPath, "backup file not found", err)
	}

	if err := copyFile(backupPath, originalPath); err != nil {
		return errors.NewBackupError(originalPath, "failed to restore file content", err)
	}
	return nil
}

// CleanupBackup removes a backup file. A missing file is not an error.
func (bm *Manager) CleanupBackup(backupPath string) error {
	if backupPath == "" {
		return nil
	}

	err := os.Remove(backupPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.NewBackupError(backupPath, "failed to remove backup file", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	timestamp := time.Now().Format("20060102_150405.000000")

	return filepath.Join(dir, fmt.Sprintf("%s.%s.bak", base, timestamp))
}

// LogEntry is one file entry of a run report.
type LogEntry struct {
	FilePath     string                    `json:"file_path"`
	SourceFile   string                    `json:"source_file,omitempty"`
	Modified     bool                      `json:"modified"`
	Replacements []replacement.Replacement `json:"replacements,omitempty"`
	BackupPath   string                    `json:"backup_path,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// ReadLog parses a run report written with the given format ("json" or "csv").
func ReadLog(logFilePath, logFormat string) ([]LogEntry, error) {
	content, err := os.ReadFile(logFilePath)
	if err != nil {
		return nil, errors.NewFileError(logFilePath, "failed to read log file", err)
	}

	switch logFormat {
	case "json":
		// Verbose output may precede the report.
		jsonStart := bytes.IndexByte(content, '{')
		if jsonStart == -1 {
			return nil, errors.NewParsingError(logFilePath, "no JSON content found in log file", nil)
		}
		entries, err := parseJSONLog(content[jsonStart:])
		if err != nil {
			return nil, errors.NewParsingError(logFilePath, "failed to parse JSON report", err)
		}
		return entries, nil
	case "csv":
		entries, err := parseCSVLog(string(content))
		if err != nil {
			return nil, errors.NewParsingError(logFilePath, "failed to parse CSV report", err)
		}
		return entries, nil
	default:
		return nil, errors.NewParsingError(logFilePath, fmt.Sprintf("unsupported log format: %s", logFormat), nil)
	}
}

func parseJSONLog(content []byte) ([]LogEntry, error) {
	var report struct {
		Entries []LogEntry `json:"entries"`
	}

	if err := json.Unmarshal(content, &report); err != nil {
		return nil, err
	}

	return report.Entries, nil
}

// CSVHeader is the header row of CSV run reports.
var CSVHeader = []string{"file_path", "from", "to", "line", "column", "byte_offset", "new_byte_offset", "target"}

func parseCSVLog(content string) ([]LogEntry, error) {
	var csvLines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		csvLines = append(csvLines, line)
	}

	if len(csvLines) == 0 {
		return nil, fmt.Errorf("no CSV data found")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(csvLines, "\n")))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	index := make(map[string]int)

	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == CSVHeader[0] {
			continue
		}
		if len(record) < 3 {
			continue
		}

		repl := replacement.Replacement{From: record[1], To: record[2]}
		repl.Line = atoi(record, 3)
		repl.Column = atoi(record, 4)
		repl.ByteOffset = int64(atoi(record, 5))
		repl.NewByteOffset = int64(atoi(record, 6))
		if len(record) > 7 {
			repl.Target = record[7]
		}

		pos, ok := index[record[0]]
		if !ok {
			pos = len(entries)
			index[record[0]] = pos
			entries = append(entries, LogEntry{FilePath: record[0], Modified: true})
		}
		entries[pos].Replacements = append(entries[pos].Replacements, repl)
	}

	return entries, nil
}

func atoi(record []string, i int) int {
	if i >= len(record) {
		return -1
	}
	n, err := strconv.Atoi(record[i])
	if err != nil {
		return -1
	}
	return n
}

// direction selects which side of a logged replacement is searched for.
type direction int

const (
	forward direction = iota
	reverse
)

// RevertManager undoes a run recorded in a report.
type RevertManager struct {
	scanner replacement.Scanner
}

// NewRevertManager creates a RevertManager.
func NewRevertManager() *RevertManager {
	return &RevertManager{scanner: replacement.NewRegexScanner()}
}

// RevertFromLogWithFormat restores every modified file of the report, from
// its backup when one was recorded and by rewriting the new specifiers back
// to the original ones otherwise.
func (rm *RevertManager) RevertFromLogWithFormat(logFilePath, logFormat string) (int, error) {
	entries, err := ReadLog(logFilePath, logFormat)
	if err != nil {
		return 0, err
	}

	return replay(logFilePath, "revert", entries, func(entry LogEntry) error {
		if entry.BackupPath != "" {
			if _, err := os.Stat(entry.BackupPath); err == nil {
				return NewBackupManager(true).RestoreFile(entry.FilePath, entry.BackupPath)
			}
		}
		return remapFile(rm.scanner, entry, reverse)
	})
}

// ApplyManager replays a run recorded in a report onto the original files,
// for example after the output tree was rebuilt.
type ApplyManager struct {
	scanner replacement.Scanner
}

// NewApplyManager creates an ApplyManager.
func NewApplyManager() *ApplyManager {
	return &ApplyManager{scanner: replacement.NewRegexScanner()}
}

// ApplyFromLogWithFormat rewrites the logged specifiers again.
func (am *ApplyManager) ApplyFromLogWithFormat(logFilePath, logFormat string) (int, error) {
	entries, err := ReadLog(logFilePath, logFormat)
	if err != nil {
		return 0, err
	}

	return replay(logFilePath, "apply", entries, func(entry LogEntry) error {
		return remapFile(am.scanner, entry, forward)
	})
}

func replay(logFilePath, op string, entries []LogEntry, fn func(LogEntry) error) (int, error) {
	var failures []error
	done := 0

	for _, entry := range entries {
		if !entry.Modified || entry.Error != "" {
			continue
		}

		if err := fn(entry); err != nil {
			failures = append(failures, err)
		} else {
			done++
		}
	}

	if len(failures) > 0 {
		return done, errors.NewBackupError(logFilePath,
			fmt.Sprintf("%s completed with %d successes and %d errors", op, done, len(failures)),
			failures[0])
	}

	return done, nil
}

// remapFile rewrites the specifiers of one logged file. Only occurrences at
// recorded offsets are touched, so an unrelated specifier that happens to
// equal a logged value is never rewritten. When the file was shifted since
// the run, a single uniform shift that lines every recorded edit up again is
// accepted; anything else leaves the file untouched and returns an error.
func remapFile(scanner replacement.Scanner, entry LogEntry, dir direction) error {
	info, err := os.Stat(entry.FilePath)
	if err != nil {
		return errors.WrapFileError(entry.FilePath, err)
	}
	content, err := os.ReadFile(entry.FilePath)
	if err != nil {
		return errors.WrapFileError(entry.FilePath, err)
	}

	hints := make(map[int]replacement.Edit, len(entry.Replacements))
	for _, r := range entry.Replacements {
		from, to, offset := r.From, r.To, int(r.ByteOffset)
		if dir == reverse {
			from, to, offset = r.To, r.From, int(r.NewByteOffset)
		}
		if offset < 0 {
			return errors.NewBackupError(entry.FilePath, fmt.Sprintf("no offset recorded for %s", from), nil)
		}
		hints[offset] = replacement.Edit{Offset: offset, Old: from, New: to}
	}
	if len(hints) == 0 {
		return nil
	}

	occurrences := scanner.Scan(content)
	if !hintsMatch(occurrences, hints, 0) {
		delta, ok := findShift(occurrences, hints)
		if !ok {
			return errors.NewBackupError(entry.FilePath, "logged specifiers no longer match the file", nil)
		}
		hints = shiftHints(hints, delta)
	}

	newContent, _ := replacement.RemapSpecifiers(scanner, content, nil, hints)
	if err := os.WriteFile(entry.FilePath, newContent, info.Mode().Perm()); err != nil {
		return errors.NewFileNotWritableError(entry.FilePath, err)
	}
	return nil
}

// hintsMatch reports whether every hint, moved by delta, sits on an
// occurrence with the expected value.
func hintsMatch(occurrences []replacement.Occurrence, hints map[int]replacement.Edit, delta int) bool {
	values := make(map[int]string, len(occurrences))
	for _, o := range occurrences {
		values[o.Start] = o.Value
	}
	for offset, h := range hints {
		if v, ok := values[offset+delta]; !ok || v != h.Old {
			return false
		}
	}
	return true
}

// findShift returns the only offset delta under which all hints match.
// Zero or several candidate deltas mean the edits cannot be placed safely.
func findShift(occurrences []replacement.Occurrence, hints map[int]replacement.Edit) (int, bool) {
	first := -1
	for offset := range hints {
		if first == -1 || offset < first {
			first = offset
		}
	}

	found, delta := 0, 0
	for _, o := range occurrences {
		if o.Value != hints[first].Old {
			continue
		}
		d := o.Start - first
		if hintsMatch(occurrences, hints, d) {
			found++
			delta = d
		}
	}
	return delta, found == 1
}

func shiftHints(hints map[int]replacement.Edit, delta int) map[int]replacement.Edit {
	shifted := make(map[int]replacement.Edit, len(hints))
	for offset, h := range hints {
		h.Offset = offset + delta
		shifted[h.Offset] = h
	}
	return shifted
}
