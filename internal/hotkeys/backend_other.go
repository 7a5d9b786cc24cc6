//go:build !windows && !(linux && cgo)

package hotkeys

import (
	"errors"
	"log/slog"
)

// ErrUnsupportedPlatform is returned by Listen on platforms without a global
// hotkey backend.
var ErrUnsupportedPlatform = errors.New("global hotkeys are not supported on this platform")

type unsupportedBackend struct{}

func newPlatformBackend() Backend { return unsupportedBackend{} }

func (unsupportedBackend) Listen(chords []Chord, _ func(Chord)) (Listener, error) {
	if len(chords) == 0 {
		return noopListener{}, nil
	}
	slog.Warn("[hotkey] global hotkeys unavailable on this platform", "chords", len(chords))
	return nil, ErrUnsupportedPlatform
}

type noopListener struct{}

func (noopListener) Stop() error { return nil }
