//go:build unix

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gamergamma/internal/userutil"

	"golang.org/x/sys/unix"
)

// Lock holds an exclusive flock on a lock file. The kernel drops it when the
// owning process exits.
type Lock struct {
	file *os.File
}

// TryLock takes a non-blocking exclusive flock on the file at name, creating
// it if needed, or returns ErrAlreadyRunning.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %q: %w", name, err)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. Nil-safe and idempotent.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := errors.Join(unix.Flock(int(l.file.Fd()), unix.LOCK_UN), l.file.Close())
	l.file = nil
	return err
}

// DefaultName is the per-user lock file, under XDG_RUNTIME_DIR when set.
func DefaultName() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gamergamma-"+userutil.CurrentUsername()+".lock")
}
