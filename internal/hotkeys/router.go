package hotkeys

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"gamergamma/internal/preset"
	"gamergamma/internal/workerutil"
)

const defaultQueueSize = 16

// State is the router's listener state.
type State int32

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type boundAction struct {
	presetID string
	chord    Chord
	run      func()
}

// bindingTable is immutable once published.
type bindingTable struct {
	generation uint64
	actions    map[string]boundAction // keyed by Chord.Wrapped()
}

type chordEvent struct {
	table *bindingTable
	key   string
}

// RouterOptions tunes a Router.
type RouterOptions struct {
	// QueueSize bounds chord events waiting for the dispatch goroutine.
	QueueSize int
	// OnRebuilt is called after each successful Rebuild with the live
	// preset id -> chord map.
	OnRebuilt func(bindings map[string]string)
}

// Router owns the live hotkey listener and its binding table. Rebuild
// replaces both; chord callbacks run one at a time on a single dispatch
// goroutine.
type Router struct {
	backend Backend
	opts    RouterOptions

	mu         sync.Mutex // serializes Rebuild, Stop and Close
	listener   Listener
	generation uint64

	table atomic.Pointer[bindingTable]
	state atomic.Int32
	// stoppedGen is the last generation discarded by Stop. Events from
	// tables at or below it are never delivered.
	stoppedGen atomic.Uint64
	closed     atomic.Bool

	events chan chordEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRouter starts the dispatch goroutine. Close stops it.
func NewRouter(backend Backend, opts RouterOptions) *Router {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		backend: backend,
		opts:    opts,
		events:  make(chan chordEvent, opts.QueueSize),
		cancel:  cancel,
	}
	workerutil.RunWithPanicRecovery(ctx, "hotkey-dispatch", &r.wg, r.dispatchLoop, workerutil.RecoveryOptions{
		IsShutdown: r.closed.Load,
	})
	return r
}

// State reports whether a listener is live.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Bindings returns the live preset id -> canonical chord map.
func (r *Router) Bindings() map[string]string {
	t := r.table.Load()
	if t == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(t.actions))
	for _, a := range t.actions {
		out[a.presetID] = a.chord.String()
	}
	return out
}

// Rebuild replaces the binding table. bindings maps preset id to chord
// string; resolve returns the action for a preset id. Unparseable chords
// and chords claimed by a lower-ordered preset id are skipped and reported
// in the returned error; the rest are still registered. The previous
// listener is stopped, unregistering all of its chords, before the new one
// registers.
func (r *Router) Rebuild(bindings map[string]string, resolve func(presetID string) func()) error {
	if resolve == nil {
		return errors.New("rebuild: resolve is required")
	}

	var skipped []error
	actions := make(map[string]boundAction, len(bindings))
	ids := slices.SortedFunc(maps.Keys(bindings), preset.CompareIDs)
	for _, id := range ids {
		chord, err := ParseChord(bindings[id])
		if err != nil {
			slog.Warn("[hotkey] skipping invalid binding", "preset", id, "hotkey", bindings[id], "error", err)
			skipped = append(skipped, fmt.Errorf("preset %s: %w", id, err))
			continue
		}
		key := chord.Wrapped()
		if prev, dup := actions[key]; dup {
			err := fmt.Errorf("%w: %s bound to presets %s and %s", ErrInvalidBinding, chord, prev.presetID, id)
			slog.Warn("[hotkey] duplicate chord, keeping first preset", "chord", chord.String(), "kept", prev.presetID, "skipped", id)
			skipped = append(skipped, err)
			continue
		}
		run := resolve(id)
		if run == nil {
			skipped = append(skipped, fmt.Errorf("preset %s: no action", id))
			continue
		}
		actions[key] = boundAction{presetID: id, chord: chord, run: run}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.stopListenerLocked(); err != nil {
		slog.Warn("[hotkey] previous listener did not stop cleanly", "error", err)
	}

	r.generation++
	table := &bindingTable{generation: r.generation, actions: actions}
	chords := make([]Chord, 0, len(actions))
	for _, a := range actions {
		chords = append(chords, a.chord)
	}
	slices.SortFunc(chords, func(a, b Chord) int { return cmp.Compare(a.String(), b.String()) })

	listener, err := r.backend.Listen(chords, func(c Chord) { r.enqueue(table, c) })
	if err != nil {
		r.table.Store(nil)
		return errors.Join(append(skipped, fmt.Errorf("start hotkey listener: %w", err))...)
	}
	r.listener = listener
	r.table.Store(table)
	r.state.Store(int32(StateListening))
	slog.Info("[hotkey] bindings active", "generation", table.generation, "count", len(actions))

	if r.opts.OnRebuilt != nil {
		r.opts.OnRebuilt(r.Bindings())
	}
	return errors.Join(skipped...)
}

// Stop unregisters every chord and returns to Idle. Events still queued are
// discarded.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stoppedGen.Store(r.generation)
	r.table.Store(nil)
	return r.stopListenerLocked()
}

// Close stops the listener and the dispatch goroutine.
func (r *Router) Close() error {
	r.closed.Store(true)
	err := r.Stop()
	r.cancel()
	r.wg.Wait()
	return err
}

func (r *Router) stopListenerLocked() error {
	if r.listener == nil {
		return nil
	}
	l := r.listener
	r.listener = nil
	r.state.Store(int32(StateIdle))
	return l.Stop()
}

// enqueue runs on the backend goroutine. The event carries the table of
// the listener that observed it.
func (r *Router) enqueue(table *bindingTable, c Chord) {
	select {
	case r.events <- chordEvent{table: table, key: c.Wrapped()}:
	default:
		slog.Warn("[hotkey] dispatch queue full, chord event dropped",
			"chord", c.String(), "generation", table.generation, "queue", cap(r.events))
	}
}

func (r *Router) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.deliver(ev)
		}
	}
}

func (r *Router) deliver(ev chordEvent) {
	if ev.table.generation <= r.stoppedGen.Load() {
		slog.Debug("[hotkey] listener stopped, discarding chord", "chord", ev.key, "generation", ev.table.generation)
		return
	}
	action, ok := ev.table.actions[ev.key]
	if !ok {
		slog.Warn("[hotkey] chord not in its binding table", "chord", ev.key, "generation", ev.table.generation)
		return
	}
	slog.Debug("[hotkey] chord fired", "chord", action.chord.String(), "preset", action.presetID, "generation", ev.table.generation)
	action.run()
}
