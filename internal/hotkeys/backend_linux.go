//go:build linux && cgo

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// X11 synthesizes Keyup/Keydown pairs while a key is held. A keydown that
// follows the previous keyup this closely is treated as autorepeat.
const autorepeatGap = 40 * time.Millisecond

// X11 keysyms for keys the hotkey package does not name.
var x11KeysymByToken = map[string]hotkey.Key{
	"backspace": 0xff08,
	"insert":    0xff63,
	"home":      0xff50,
	"end":       0xff57,
	"page_up":   0xff55,
	"page_down": 0xff56,
}

var x11ModifierByToken = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.Mod1,
	"super": hotkey.Mod4,
}

type x11Backend struct{}

func newPlatformBackend() Backend { return x11Backend{} }

type x11Listener struct {
	hotkeys []*hotkey.Hotkey
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Listen grabs every chord on the X display. A chord that cannot be grabbed
// aborts the whole listener and releases the chords grabbed before it.
func (x11Backend) Listen(chords []Chord, fire func(Chord)) (Listener, error) {
	if fire == nil {
		return nil, errors.New("fire callback is required")
	}
	l := &x11Listener{quit: make(chan struct{})}
	for _, c := range chords {
		mods, key, err := x11Chord(c)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("register hotkey %q: %w", c.String(), err), l.Stop())
		}
		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			return nil, errors.Join(fmt.Errorf("register hotkey %q: %w", c.String(), err), l.Stop())
		}
		l.hotkeys = append(l.hotkeys, hk)
		l.wg.Go(func() { l.watch(hk, c, fire) })
	}
	return l, nil
}

func (l *x11Listener) watch(hk *hotkey.Hotkey, c Chord, fire func(Chord)) {
	var lastUp time.Time
	for {
		select {
		case <-l.quit:
			return
		case <-hk.Keydown():
			if !lastUp.IsZero() && time.Since(lastUp) < autorepeatGap {
				continue
			}
			fire(c)
		case <-hk.Keyup():
			lastUp = time.Now()
		}
	}
}

// Stop ungrabs every chord and waits for the watcher goroutines.
func (l *x11Listener) Stop() error {
	var errs []error
	l.once.Do(func() {
		close(l.quit)
		l.wg.Wait()
		for _, hk := range l.hotkeys {
			if err := hk.Unregister(); err != nil {
				slog.Warn("[hotkey] unregister failed", "error", err)
				errs = append(errs, err)
			}
		}
		l.hotkeys = nil
	})
	return errors.Join(errs...)
}

func x11Chord(c Chord) ([]hotkey.Modifier, hotkey.Key, error) {
	mods := make([]hotkey.Modifier, 0, len(c.Modifiers()))
	for _, m := range c.Modifiers() {
		mods = append(mods, x11ModifierByToken[m])
	}

	key := c.Key()
	if n, ok := functionKeyNumber(key); ok {
		if n > 20 {
			return nil, 0, fmt.Errorf("function key %q is not available on X11", key)
		}
		return mods, hotkey.KeyF1 + hotkey.Key(n-1), nil
	}
	switch key {
	case "space":
		return mods, hotkey.KeySpace, nil
	case "tab":
		return mods, hotkey.KeyTab, nil
	case "enter":
		return mods, hotkey.KeyReturn, nil
	case "esc":
		return mods, hotkey.KeyEscape, nil
	case "delete":
		return mods, hotkey.KeyDelete, nil
	case "left":
		return mods, hotkey.KeyLeft, nil
	case "right":
		return mods, hotkey.KeyRight, nil
	case "up":
		return mods, hotkey.KeyUp, nil
	case "down":
		return mods, hotkey.KeyDown, nil
	}
	if k, ok := x11KeysymByToken[key]; ok {
		return mods, k, nil
	}
	// Latin-1 keysyms equal their ASCII code points.
	if len(key) == 1 && key[0] > 0x20 && key[0] < 0x7f {
		return mods, hotkey.Key(key[0]), nil
	}
	return nil, 0, fmt.Errorf("no X11 keysym for %q", key)
}
