package sessionlog

import "sync"

// DefaultRingSize is the number of recent entries kept by NewRing(0).
const DefaultRingSize = 200

// Ring keeps the most recent entries. It is safe for concurrent use and its
// Add method is an EntryCallback.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing returns a ring holding up to size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Add stores e, evicting the oldest entry when full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the stored entries, oldest first. limit > 0 keeps only the
// newest limit entries.
func (r *Ring) Entries(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	if r.full {
		out = append(out, r.entries[r.next:]...)
	}
	out = append(out, r.entries[:r.next]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Fanout returns a callback invoking every non-nil callback in order.
func Fanout(callbacks ...EntryCallback) EntryCallback {
	return func(e Entry) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(e)
			}
		}
	}
}
