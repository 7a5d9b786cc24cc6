package main

import (
	"context"
	"iter"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/notify"
	"gamergamma/internal/preset"
	"gamergamma/internal/vcp"
)

type recordingStarter struct {
	mu    sync.Mutex
	argvs [][]string
}

func (r *recordingStarter) StartTagged(_, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argvs = append(r.argvs, append([]string{name}, args...))
	return nil
}

// WaitTag returns at once; recorded commands never run.
func (r *recordingStarter) WaitTag(context.Context, string) error { return nil }

func (r *recordingStarter) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.argvs)
}

// waitCalls polls until at least n commands were started.
func (r *recordingStarter) waitCalls(t *testing.T, n int) [][]string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := r.calls(); len(calls) >= n {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("started %d commands, want %d", len(r.calls()), n)
	return nil
}

type fakeMonitors []inventory.Monitor

func (f fakeMonitors) Monitors(context.Context) iter.Seq[inventory.Monitor] {
	return slices.Values(f)
}

type hotkeyListener struct {
	backend *hotkeyBackend
}

func (l *hotkeyListener) Stop() error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()
	if l.backend.live == l {
		l.backend.live = nil
		l.backend.chords = nil
		l.backend.fire = nil
	}
	return nil
}

// hotkeyBackend keeps the chords of the live listener and lets tests press
// them.
type hotkeyBackend struct {
	mu     sync.Mutex
	live   *hotkeyListener
	chords []string
	fire   func(hotkeys.Chord)
}

func (b *hotkeyBackend) Listen(chords []hotkeys.Chord, fire func(hotkeys.Chord)) (hotkeys.Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := &hotkeyListener{backend: b}
	b.live = l
	b.fire = fire
	b.chords = b.chords[:0]
	for _, c := range chords {
		b.chords = append(b.chords, c.String())
	}
	return l, nil
}

func (b *hotkeyBackend) registered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.chords)
	slices.Sort(out)
	return out
}

func (b *hotkeyBackend) press(t *testing.T, chord string) {
	t.Helper()
	b.mu.Lock()
	fire := b.fire
	ok := slices.Contains(b.chords, chord)
	b.mu.Unlock()
	if !ok || fire == nil {
		t.Fatalf("chord %q is not registered", chord)
	}
	fire(hotkeys.MustParseChord(chord))
}

type testApp struct {
	*App
	starter *recordingStarter
	hotkeys *hotkeyBackend
}

// newTestApp wires an App around fakes for the process boundary, the
// monitor inventory and the hotkey backend.
func newTestApp(t *testing.T, avail dispatch.Availability) testApp {
	t.Helper()
	dir := t.TempDir()
	a := NewApp(filepath.Join(dir, "config.yaml"))
	starter := &recordingStarter{}
	backend := &hotkeyBackend{}

	a.store = preset.NewStore(filepath.Join(dir, "gg_presets.json"), nil)
	if _, err := a.store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	a.monitors = fakeMonitors{{Index: 1, Name: "DELL U2720Q"}, {Index: 2, Name: "LG 27GL850"}}
	a.notifier = notify.New(false, false)
	a.engine = dispatch.NewEngine(vcp.NewCodec("ddcutil", "nvibrant", 7),
		dispatch.ProcessSubmitter{Starter: starter}, a.store, avail,
		dispatch.Options{OnOutcome: a.onOutcome})
	a.router = hotkeys.NewRouter(backend, hotkeys.RouterOptions{OnRebuilt: a.onBindingsRebuilt})
	if err := a.rebuildHotkeys(); err != nil {
		t.Fatalf("rebuildHotkeys() error = %v", err)
	}
	t.Cleanup(func() {
		if err := a.router.Close(); err != nil {
			t.Errorf("router.Close() error = %v", err)
		}
		a.hub.Close()
	})
	return testApp{App: a, starter: starter, hotkeys: backend}
}
