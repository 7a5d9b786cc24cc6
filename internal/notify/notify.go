// Package notify shows desktop notifications and plays the apply beep.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

const (
	appName = "gamergamma"
	// minInterval keeps a burst of identical messages from flooding the
	// notification daemon.
	minInterval = 2 * time.Second
)

// Notifier is safe for concurrent use. A disabled Notifier only logs.
type Notifier struct {
	enabled bool
	beep    bool

	notifyFn func(title, message string, icon any) error
	beepFn   func(freq float64, duration int) error
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// New returns a notifier. enabled gates desktop notifications; beepOnApply
// gates Applied's beep.
func New(enabled, beepOnApply bool) *Notifier {
	beeep.AppName = appName
	return &Notifier{
		enabled:  enabled,
		beep:     beepOnApply,
		notifyFn: beeep.Notify,
		beepFn:   beeep.Beep,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Info shows message under title. Repeats of the same title and message
// within a short interval are suppressed.
func (n *Notifier) Info(title, message string) {
	if n == nil || !n.enabled || message == "" {
		return
	}
	key := title + "\x00" + message
	n.mu.Lock()
	if t, ok := n.last[key]; ok && n.now().Sub(t) < minInterval {
		n.mu.Unlock()
		return
	}
	n.last[key] = n.now()
	n.mu.Unlock()

	if err := n.notifyFn(title, message, ""); err != nil {
		slog.Debug("[DEBUG-NOTIFY] desktop notification failed", "title", title, "error", err)
	}
}

// Warn is Info with the application name as title.
func (n *Notifier) Warn(message string) {
	n.Info(appName, message)
}

// Applied beeps when beep-on-apply is enabled.
func (n *Notifier) Applied() {
	if n == nil || !n.beep {
		return
	}
	if err := n.beepFn(beeep.DefaultFreq, beeep.DefaultDuration/3); err != nil {
		slog.Debug("[DEBUG-NOTIFY] beep failed", "error", err)
	}
}
