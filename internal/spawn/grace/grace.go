// Package grace tracks short invulnerability windows granted after a player
// is moved to a spawn point.
package grace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[uuid.UUID]time.Time
}

func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		now:    time.Now,
		until:  map[uuid.UUID]time.Time{},
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Grant opens (or extends) the window for player. The world is accepted for
// parity with the host API and is not used for bookkeeping.
func (t *Tracker) Grant(player uuid.UUID, _ string) {
	if t.window <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.until[player] = t.now().Add(t.window)
}

// Protected reports whether damage to player should be cancelled right now.
// Expired entries are dropped.
func (t *Tracker) Protected(player uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.until[player]
	if !ok {
		return false
	}
	if !t.now().Before(deadline) {
		delete(t.until, player)
		return false
	}
	return true
}

// Len is the number of open windows, expired ones included until observed.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.until)
}
