// Package errors provides the typed error hierarchy used across tscpaths.
// Errors carry a category so the driver can tell configuration failures,
// which abort a run, apart from per-file and per-specifier failures.
package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ErrorType is the category of a ToolError.
type ErrorType string

// Error categories. Configuration errors abort the run before any file is
// touched; the other categories are recorded against a single file.
const (
	ErrTypeFile       ErrorType = "file"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeParsing    ErrorType = "parsing"
	ErrTypeResolution ErrorType = "resolution"
	ErrTypeBackup     ErrorType = "backup"
)

// ToolError is the base error type. Path is the file the error relates to,
// if any, and Cause is the underlying error.
type ToolError struct {
	Type    ErrorType
	Path    string
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ToolError of the same category, so that
// errors.Is(err, &ToolError{Type: ErrTypeConfig}) matches any config error.
func (e *ToolError) Is(target error) bool {
	t, ok := target.(*ToolError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// FileError is a file system failure.
type FileError struct {
	*ToolError
}

// NewFileError creates a file operation error with context.
func NewFileError(path, message string, cause error) *FileError {
	return &FileError{
		ToolError: &ToolError{
			Type:    ErrTypeFile,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// FileNotFoundError is returned when a file disappeared or never existed.
type FileNotFoundError struct {
	*FileError
}

// NewFileNotFoundError creates a file not found error.
func NewFileNotFoundError(path string, cause error) *FileNotFoundError {
	return &FileNotFoundError{
		FileError: NewFileError(path, "file not found", cause),
	}
}

// FileNotWritableError is returned when a rewritten file cannot be stored.
type FileNotWritableError struct {
	*FileError
}

// NewFileNotWritableError creates a file write error.
func NewFileNotWritableError(path string, cause error) *FileNotWritableError {
	return &FileNotWritableError{
		FileError: NewFileError(path, "file not writable", cause),
	}
}

// FileNotReadableError is returned when an output file cannot be read.
type FileNotReadableError struct {
	*FileError
}

// NewFileNotReadableError creates a file read error.
func NewFileNotReadableError(path string, cause error) *FileNotReadableError {
	return &FileNotReadableError{
		FileError: NewFileError(path, "file not readable", cause),
	}
}

// ConfigError is a fatal configuration problem: a missing flag, an
// unreadable project file or a required compiler option left unset.
type ConfigError struct {
	*ToolError
}

// NewConfigError creates a configuration error without path context.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		ToolError: &ToolError{
			Type:    ErrTypeConfig,
			Message: message,
			Cause:   cause,
		},
	}
}

// NewConfigErrorWithPath creates a configuration error tied to a config file.
func NewConfigErrorWithPath(path, message string, cause error) *ConfigError {
	return &ConfigError{
		ToolError: &ToolError{
			Type:    ErrTypeConfig,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// ParsingError is a malformed tsconfig or run report.
type ParsingError struct {
	*ToolError
}

// NewParsingError creates a parsing error with file context.
func NewParsingError(path, message string, cause error) *ParsingError {
	return &ParsingError{
		ToolError: &ToolError{
			Type:    ErrTypeParsing,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// ResolutionError describes an aliased specifier that matched a prefix but
// no candidate module. It is reported, never returned as fatal.
type ResolutionError struct {
	*ToolError
	Specifier string
}

// NewResolutionError creates an error for an unresolvable specifier found in path.
func NewResolutionError(path, specifier string) *ResolutionError {
	return &ResolutionError{
		ToolError: &ToolError{
			Type:    ErrTypeResolution,
			Path:    path,
			Message: fmt.Sprintf("could not replace %s", specifier),
		},
		Specifier: specifier,
	}
}

// BackupError is a failure creating or restoring a .bak copy.
type BackupError struct {
	*ToolError
}

// NewBackupError creates a backup operation error.
func NewBackupError(path, message string, cause error) *BackupError {
	return &BackupError{
		ToolError: &ToolError{
			Type:    ErrTypeBackup,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// WrapFileError converts an error from the os package into a typed FileError
// family member keyed on the absolute path.
func WrapFileError(path string, err error) error {
	if err == nil {
		return nil
	}

	absPath, absErr := filepath.Abs(path)
	if absErr != nil {
		absPath = path
	}
	switch {
	case isNotFoundError(err):
		return NewFileNotFoundError(absPath, err)
	case isPermissionError(err):
		return NewFileNotReadableError(absPath, err)
	default:
		return NewFileError(absPath, "file operation failed", err)
	}
}

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	return stderrors.Is(err, &ToolError{Type: ErrTypeConfig})
}

func isNotFoundError(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}

func isPermissionError(err error) bool {
	return stderrors.Is(err, fs.ErrPermission)
}
