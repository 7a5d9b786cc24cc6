// Package docwatch notices edits made to the preset document by other
// programs.
package docwatch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the event bursts editors produce on save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports content changes of one file. The parent directory is
// watched because atomic saves replace the file instead of writing it.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()

	fsw     *fsnotify.Watcher
	lastSum [sha256.Size]byte
	hasSum  bool
}

// New starts watching path. onChange runs on the Run goroutine after the
// file content differs from what was last seen.
func New(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("docwatch: onChange is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("docwatch: resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("docwatch: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("docwatch: watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{path: abs, debounce: debounce, onChange: onChange, fsw: fsw}
	w.lastSum, w.hasSum = w.sum()
	return w, nil
}

// Path returns the absolute watched path.
func (w *Watcher) Path() string { return w.path }

// Run delivers changes until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("[WARN-FILE] document watcher error", "path", w.path, "error", err)
		case <-timer.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	sum, ok := w.sum()
	if !ok {
		// Mid-replace or deleted; the Create that follows re-arms the timer.
		return
	}
	if w.hasSum && sum == w.lastSum {
		slog.Debug("[DEBUG-FILE] document event without content change", "path", w.path)
		return
	}
	w.lastSum, w.hasSum = sum, true
	slog.Info("[file] document changed on disk", "path", w.path)
	w.onChange()
}

func (w *Watcher) sum() ([sha256.Size]byte, bool) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}
