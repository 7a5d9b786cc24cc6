package hotkeys

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrCaptureClosed is returned by Feed after Close.
var ErrCaptureClosed = errors.New("capture session closed")

// KeyEvent is one key transition observed while editing a binding.
type KeyEvent struct {
	Key  string
	Down bool
}

// CaptureSession assembles a chord from raw key events for a binding edit.
// It never dispatches actions. The session owns one goroutine that exits
// before Close returns.
type CaptureSession struct {
	events   chan KeyEvent
	quit     chan struct{}
	done     chan struct{}
	onChange func(text string)

	closeOnce sync.Once

	mu       sync.Mutex
	held     []string // keys currently down, in press order
	captured []string // held set at the most recent key-down
}

// NewCaptureSession starts a session. onChange, if non-nil, is called from
// the session goroutine with the captured text after every key-down and
// Clear.
func NewCaptureSession(onChange func(text string)) *CaptureSession {
	s := &CaptureSession{
		events:   make(chan KeyEvent),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		onChange: onChange,
	}
	go s.run()
	return s
}

// Feed hands one event to the session goroutine.
func (s *CaptureSession) Feed(ev KeyEvent) error {
	select {
	case <-s.quit:
		return ErrCaptureClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.quit:
		return ErrCaptureClosed
	}
}

// FeedCombo feeds a terminal-style combo such as "alt+f1" as key-downs in
// order followed by key-ups in reverse.
func (s *CaptureSession) FeedCombo(combo string) error {
	parts := strings.Split(combo, "+")
	for _, p := range parts {
		if err := s.Feed(KeyEvent{Key: p, Down: true}); err != nil {
			return err
		}
	}
	for _, p := range slices.Backward(parts) {
		if err := s.Feed(KeyEvent{Key: p}); err != nil {
			return err
		}
	}
	return nil
}

// Text returns the captured keys joined by "+", in press order.
func (s *CaptureSession) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.captured, "+")
}

// Chord parses the captured keys.
func (s *CaptureSession) Chord() (Chord, error) {
	return ParseChord(s.Text())
}

// Clear forgets everything captured so far.
func (s *CaptureSession) Clear() {
	s.mu.Lock()
	s.held = nil
	s.captured = nil
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange("")
	}
}

// Close stops the session goroutine and waits for it to exit.
func (s *CaptureSession) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *CaptureSession) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case ev := <-s.events:
			s.apply(ev)
		}
	}
}

func (s *CaptureSession) apply(ev KeyEvent) {
	key := NormalizeToken(ev.Key)
	if key == "" {
		return
	}
	s.mu.Lock()
	if !ev.Down {
		s.held = slices.DeleteFunc(s.held, func(k string) bool { return k == key })
		s.mu.Unlock()
		return
	}
	if !slices.Contains(s.held, key) {
		s.held = append(s.held, key)
	}
	s.captured = slices.Clone(s.held)
	text := strings.Join(s.captured, "+")
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(text)
	}
}
