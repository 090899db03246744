// Package filter discovers the compiled output files to rewrite.
// Include and exclude rules are doublestar globs matched against the
// slash-separated path relative to the output directory.
package filter

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar"

	"tscpaths/internal/config"
	"tscpaths/internal/errors"
)

// FileInfo contains the metadata the processor needs about a file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
	Mode    os.FileMode
	ModTime int64
}

// FileFilter is a predicate over a file's root-relative slash path.
type FileFilter func(relPath string, info os.FileInfo) (bool, error)

// FileDiscovery walks an output directory and applies the configured filters.
type FileDiscovery struct {
	config  *config.Config
	filters []FileFilter
}

// NewFileDiscovery creates a FileDiscovery from the run options.
func NewFileDiscovery(cfg *config.Config) *FileDiscovery {
	return &FileDiscovery{
		config:  cfg,
		filters: buildFilters(cfg),
	}
}

// Discover returns the matching regular files under root in lexical walk
// order. Hidden files are included; excluded directories are not entered.
func (fd *FileDiscovery) Discover(root string) ([]FileInfo, error) {
	var files []FileInfo

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewConfigErrorWithPath(root, "output directory not found", err)
	}
	if !info.IsDir() {
		return nil, errors.NewConfigErrorWithPath(root, "output directory is not a directory", nil)
	}

	// Walk does not follow a symlinked root. Paths are still reported under
	// root so they line up with the configured output directory.
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errors.NewConfigErrorWithPath(root, "output directory not readable", err)
	}

	err = filepath.Walk(walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return errors.WrapFileError(path, err)
		}

		if info.IsDir() {
			if path != walkRoot && fd.shouldExcludeDirectory(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return errors.WrapFileError(path, err)
		}
		rel = filepath.ToSlash(rel)

		shouldProcess, err := fd.shouldProcessFile(rel, info)
		if err != nil {
			return err
		}

		if shouldProcess {
			files = append(files, FileInfo{
				Path:    filepath.Join(root, filepath.FromSlash(rel)),
				RelPath: rel,
				Size:    info.Size(),
				Mode:    info.Mode(),
				ModTime: info.ModTime().UnixNano(),
			})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

func (fd *FileDiscovery) shouldProcessFile(relPath string, info os.FileInfo) (bool, error) {
	for _, filter := range fd.filters {
		should, err := filter(relPath, info)
		if err != nil {
			return false, err
		}
		if !should {
			return false, nil
		}
	}
	return true, nil
}

// shouldExcludeDirectory matches a directory's base name against the
// ExcludeDir patterns.
func (fd *FileDiscovery) shouldExcludeDirectory(name string) bool {
	for _, pattern := range fd.config.ExcludeDir {
		if name == pattern {
			return true
		}
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

func buildFilters(cfg *config.Config) []FileFilter {
	var filters []FileFilter

	filters = append(filters, regularFileFilter())

	include := cfg.Include
	if len(include) == 0 {
		include = []string{config.DefaultInclude}
	}
	filters = append(filters, includeFilter(include))

	if len(cfg.Exclude) > 0 {
		filters = append(filters, excludeFilter(cfg.Exclude))
	}

	return filters
}

func includeFilter(patterns []string) FileFilter {
	return func(relPath string, _ os.FileInfo) (bool, error) {
		for _, pattern := range patterns {
			matched, err := doublestar.Match(pattern, relPath)
			if err != nil {
				return false, errors.NewConfigError("invalid include pattern: "+pattern, err)
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}
}

func excludeFilter(patterns []string) FileFilter {
	return func(relPath string, _ os.FileInfo) (bool, error) {
		for _, pattern := range patterns {
			matched, err := doublestar.Match(pattern, relPath)
			if err != nil {
				return false, errors.NewConfigError("invalid exclude pattern: "+pattern, err)
			}
			if matched {
				return false, nil
			}
		}
		return true, nil
	}
}

func regularFileFilter() FileFilter {
	return func(_ string, info os.FileInfo) (bool, error) {
		return info.Mode().IsRegular(), nil
	}
}
