package alias

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ExistsFunc reports whether path names an existing file or directory.
type ExistsFunc func(path string) bool

// OSExists checks the real file system.
func OSExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultCacheSize is the number of lookups NewCachedExists keeps.
const DefaultCacheSize = 4096

// NewCachedExists memoises next in an LRU of the given size. Resolution
// checks the same candidate paths for every file that imports a module, and
// the file system is treated as static for the duration of a run.
func NewCachedExists(size int, next ExistsFunc) (ExistsFunc, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}

	return func(path string) bool {
		if found, ok := cache.Get(path); ok {
			return found
		}
		found := next(path)
		cache.Add(path, found)
		return found
	}, nil
}
