package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	errNoCacheFile      = errors.New("no cache file")
	errCorruptCacheFile = errors.New("corrupt cache file")
)

// readCacheFile loads a persisted window. A missing file yields errNoCacheFile;
// unreadable JSON or an invalid range yields errCorruptCacheFile. Callers treat
// both as "no cache".
func readCacheFile(path string) (Window, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Window{}, errNoCacheFile
	}
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", errCorruptCacheFile, err)
	}
	var w Window
	if err := json.Unmarshal(b, &w); err != nil {
		return Window{}, fmt.Errorf("%w: %v", errCorruptCacheFile, err)
	}
	if !(Range{Start: w.StartDate, End: w.EndDate}).valid() || w.FetchedAt.IsZero() {
		return Window{}, fmt.Errorf("%w: invalid window %s..%s", errCorruptCacheFile, w.StartDate, w.EndDate)
	}
	return w, nil
}

// writeCacheFile replaces the cache file atomically (tmp + rename).
func writeCacheFile(path string, w Window) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
