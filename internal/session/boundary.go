package session

import (
	"sync"
	"time"
)

// Boundary tracks the replay/live cutoff for one session. Bars are delivered
// as a continuous replay-then-live stream with no explicit "replay complete"
// signal; the first observed live tick is the only reliable marker, so the
// boundary is a one-way latch until Reset.
type Boundary struct {
	mu  sync.Mutex
	set bool
	at  time.Time
}

// NewBoundary returns an unset boundary.
func NewBoundary() *Boundary { return &Boundary{} }

// ObserveTick latches the boundary to ts on the first call of a session.
// Later calls are no-ops; ticks can arrive out of strict order at the cutoff
// but the session needs a fixed one.
func (b *Boundary) ObserveTick(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set {
		b.set = true
		b.at = ts
	}
}

// IsLive reports whether a bar closing at closeTime is live. With the
// boundary unset everything is treated as historical replay.
func (b *Boundary) IsLive(closeTime time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set && closeTime.After(b.at)
}

// Cutoff returns the latched boundary, if set.
func (b *Boundary) Cutoff() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.at, b.set
}

// Reset clears the latch. Called only by full teardown.
func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set = false
	b.at = time.Time{}
}
