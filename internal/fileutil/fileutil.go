// Package fileutil provides crash-safe file writes for the files root.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteAtomic replaces path with data. The content is written and synced
// to a temporary file in the same directory and renamed over path, so
// readers never observe a partial file.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := renameio.WriteFile(path, data, perm, renameio.WithTempDir(dir)); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	SyncDir(dir)
	return nil
}

// SyncDir flushes directory metadata after renames. Errors are ignored:
// a failure only weakens durability, not correctness.
func SyncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}
