package history

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	defaultWriterQueue = 64
	writeTimeout       = 5 * time.Second
)

// Recorder is the journal capability the writer needs.
type Recorder interface {
	Record(ctx context.Context, e Entry) (Entry, error)
}

// Writer records entries on a background goroutine so that hotkey dispatch
// never waits on disk.
type Writer struct {
	rec     Recorder
	queue   chan Entry
	dropped atomic.Uint64
	onSaved func(Entry)
}

// NewWriter returns a writer with a bounded queue. onSaved, if non-nil, is
// called from Run after each successful insert.
func NewWriter(rec Recorder, queueSize int, onSaved func(Entry)) *Writer {
	if queueSize <= 0 {
		queueSize = defaultWriterQueue
	}
	return &Writer{rec: rec, queue: make(chan Entry, queueSize), onSaved: onSaved}
}

// Enqueue queues e without blocking. A full queue drops e.
func (w *Writer) Enqueue(e Entry) {
	select {
	case w.queue <- e:
	default:
		n := w.dropped.Add(1)
		slog.Warn("[WARN-HISTORY] history queue full, entry dropped", "kind", e.Kind, "preset", e.PresetID, "dropped", n)
	}
}

// Dropped reports how many entries Enqueue discarded.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case e := <-w.queue:
			w.write(e)
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case e := <-w.queue:
			w.write(e)
		default:
			return
		}
	}
}

func (w *Writer) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	saved, err := w.rec.Record(ctx, e)
	if err != nil {
		slog.Warn("[WARN-HISTORY] failed to record entry", "kind", e.Kind, "preset", e.PresetID, "error", err)
		return
	}
	slog.Debug("[DEBUG-HISTORY] entry recorded", "id", saved.ID, "kind", saved.Kind)
	if w.onSaved != nil {
		w.onSaved(saved)
	}
}
