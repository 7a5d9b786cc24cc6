package hotkeys

// Backend registers global hotkeys with the operating system.
type Backend interface {
	// Listen registers every chord and calls fire once per chord
	// completion, from a backend-owned goroutine. Auto-repeat while the
	// chord is held must not produce additional calls. If any chord cannot
	// be registered, Listen unregisters the ones it already made and
	// returns an error.
	Listen(chords []Chord, fire func(Chord)) (Listener, error)
}

// Listener is one live set of registrations.
type Listener interface {
	// Stop unregisters every chord. No fire call starts after Stop returns.
	Stop() error
}

// NewBackend returns the backend for the current platform.
func NewBackend() Backend {
	return newPlatformBackend()
}
