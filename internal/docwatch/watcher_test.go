package docwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gamergamma/internal/atomicfile"
)

func startWatcher(t *testing.T, path string) <-chan struct{} {
	t.Helper()
	changes := make(chan struct{}, 8)
	w, err := New(path, 20*time.Millisecond, func() { changes <- struct{}{} })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return changes
}

func expectChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func expectNoChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
		t.Fatal("unexpected change notification")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherReportsAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gg_presets.json")
	if err := os.WriteFile(path, []byte(`{"presets":{}}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	changes := startWatcher(t, path)

	if err := atomicfile.Write(path, []byte(`{"presets":{"1":{}}}`), 0o644); err != nil {
		t.Fatalf("atomicfile.Write() error = %v", err)
	}
	expectChange(t, changes)
}

func TestWatcherIgnoresUnchangedContentAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gg_presets.json")
	content := []byte(`{"presets":{}}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	changes := startWatcher(t, path)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("rewrite error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile(other) error = %v", err)
	}
	expectNoChange(t, changes)
}

func TestWatcherReportsCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gg_presets.json")
	changes := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	expectChange(t, changes)
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing", "doc.json"), 0, func() {}); err == nil {
		t.Fatal("New() error = nil for missing directory")
	}
	if _, err := New("doc.json", 0, nil); err == nil {
		t.Fatal("New() error = nil for nil callback")
	}
}
