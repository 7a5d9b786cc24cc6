package history

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gamergamma/internal/testutil"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e Entry) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return e, f.err
	}
	e.ID = "saved"
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func TestWriterRecordsInOrderAndFlushesOnCancel(t *testing.T) {
	rec := &fakeRecorder{}
	var saved []string
	var mu sync.Mutex
	w := NewWriter(rec, 8, func(e Entry) {
		mu.Lock()
		saved = append(saved, e.PresetID)
		mu.Unlock()
	})

	for _, id := range []string{"1", "2", "3"} {
		w.Enqueue(Entry{Kind: "apply", PresetID: id})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if rec.count() != 3 {
		t.Fatalf("recorded = %d, want 3", rec.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(saved, ",") != "1,2,3" {
		t.Fatalf("onSaved order = %v", saved)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	buf := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	w := NewWriter(&fakeRecorder{}, 1, nil)
	w.Enqueue(Entry{Kind: "apply"})
	w.Enqueue(Entry{Kind: "apply"})

	if w.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", w.Dropped())
	}
	if !strings.Contains(buf.String(), "history queue full") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestWriterLogsRecordFailure(t *testing.T) {
	buf := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	called := false
	w := NewWriter(&fakeRecorder{err: errors.New("database is locked")}, 1, func(Entry) { called = true })
	w.Enqueue(Entry{Kind: "restore"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if called {
		t.Fatal("onSaved called after failed insert")
	}
	if !strings.Contains(buf.String(), "database is locked") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestWriterRunProcessesWhileLive(t *testing.T) {
	rec := &fakeRecorder{}
	w := NewWriter(rec, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(Entry{Kind: "apply", PresetID: "1"})
	deadline := time.Now().Add(2 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if rec.count() != 1 {
		t.Fatalf("recorded = %d, want 1", rec.count())
	}
}
