// Package atomicfile replaces files via temp-file + fsync + rename so a
// concurrent reader sees either the old or the new content, never a
// truncated one.
package atomicfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	maxRenameRetry = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
)

// renameFn is a test seam.
var renameFn = os.Rename

// Write atomically replaces path with data. The parent directory is created
// with 0700 when missing. The temp file lives next to path so the rename
// never crosses filesystems.
func Write(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("atomic write %s: mkdir: %w", path, err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("atomic write %s: create temp: %w", path, err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-FILE] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-FILE] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write %s: chmod temp: %w", path, err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("atomic write %s: write: %w", path, err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("atomic write %s: sync: %w", path, err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("atomic write %s: close: %w", path, err)
	}

	if err = renameWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write %s: rename: %w", path, err)
	}
	return nil
}

func renameWithRetry(sourcePath, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := renameFn(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
