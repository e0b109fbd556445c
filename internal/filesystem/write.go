package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MkdirAll creates dir and any missing parents. A directory that already
// exists, including one created concurrently by another writer, is success.
func MkdirAll(dir string, perm os.FileMode) error {
	start := time.Now()
	err := os.MkdirAll(dir, perm)
	if err != nil {
		// MkdirAll can lose a race with a concurrent creator on some platforms
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			err = nil
		}
	}
	observe().ObserveOperation(defaultResolver.Resolve(dir), "mkdir", time.Since(start).Seconds(), err)
	return err
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename. Parent directories are created with
// dirPerm. On any failure the temporary file is removed and path is left
// untouched.
func WriteFileAtomic(path string, data []byte, perm, dirPerm os.FileMode) (err error) {
	start := time.Now()
	dir := filepath.Dir(path)
	defer func() {
		observe().ObserveOperation(defaultResolver.Resolve(path), "write", time.Since(start).Seconds(), err)
	}()

	if err = MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s into place: %w", filepath.Base(path), err)
	}

	return nil
}
