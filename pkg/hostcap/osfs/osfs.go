// Package osfs provides the real filesystem-backed implementation of
// hostcap.AtomicWriter used by cmd/x07derive, leaving the fake
// implementation in pkg/hostcap/fake for tests.
package osfs

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriter writes a file by creating a temp file in the same
// directory as the destination, writing and fsyncing it, then renaming it
// into place (spec §4.3 Determinism: a crash mid-run never leaves a
// half-written module on disk).
type AtomicWriter struct{}

func New() AtomicWriter { return AtomicWriter{} }

// ReadFile reads the current on-disk contents of path, satisfying
// hostcap.FileReader for the schema-derive drift check.
func (AtomicWriter) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (AtomicWriter) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}
