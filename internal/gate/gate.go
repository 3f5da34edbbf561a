// Package gate implements the rate gate that decides whether a new message
// continues an ongoing session (so prior context is carried over) or arrives
// after a long lull (so context resets).
//
// The gate keeps the time of the last accepted request, either one timestamp
// for the whole process (ScopeGlobal, the default) or one per user (ScopeUser). A key that
// has never been recorded falls back to the moment the gate was created, so
// the first message after start-up counts as continuing.
package gate

import (
	"sync"
	"time"
)

// DefaultInterval is the lull after which context is no longer carried over.
const DefaultInterval = 30 * time.Minute

// Scope selects how accepted requests are keyed.
type Scope string

const (
	// ScopeUser tracks one timestamp per user.
	ScopeUser Scope = "user"
	// ScopeGlobal shares a single timestamp between all users.
	ScopeGlobal Scope = "global"
)

// Gate tracks the last accepted request time. Safe for concurrent use.
type Gate struct {
	interval time.Duration
	scope    Scope
	now      func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	global    time.Time
	last      map[int64]time.Time
}

// New returns a Gate. A non-positive interval falls back to DefaultInterval,
// an unknown scope to ScopeGlobal and a nil clock to time.Now.
func New(interval time.Duration, scope Scope, now func() time.Time) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if scope != ScopeUser {
		scope = ScopeGlobal
	}
	if now == nil {
		now = time.Now
	}
	start := now()
	return &Gate{
		interval:  interval,
		scope:     scope,
		now:       now,
		startedAt: start,
		global:    start,
		last:      make(map[int64]time.Time),
	}
}

// Scope reports how the gate keys requests.
func (g *Gate) Scope() Scope { return g.scope }

// Interval reports the configured session window.
func (g *Gate) Interval() time.Duration { return g.interval }

// Continuing reports whether a request at now falls within the session
// window of the last accepted request for userID.
func (g *Gate) Continuing(userID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.continuingLocked(userID, now)
}

// Record stores now as the last accepted request time for userID.
func (g *Gate) Record(userID int64, now time.Time) {
	g.mu.Lock()
	g.recordLocked(userID, now)
	g.mu.Unlock()
}

// Admit evaluates the gate for userID at the current time and then records
// the request, as one step. The returned value is the evaluation made before
// the update, so a request never observes its own timestamp.
func (g *Gate) Admit(userID int64) bool {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.continuingLocked(userID, now)
	g.recordLocked(userID, now)
	return ok
}

func (g *Gate) continuingLocked(userID int64, now time.Time) bool {
	return now.Sub(g.lastLocked(userID)) < g.interval
}

func (g *Gate) lastLocked(userID int64) time.Time {
	if g.scope == ScopeGlobal {
		return g.global
	}
	if t, ok := g.last[userID]; ok {
		return t
	}
	return g.startedAt
}

func (g *Gate) recordLocked(userID int64, now time.Time) {
	if g.scope == ScopeGlobal {
		g.global = now
		return
	}
	g.last[userID] = now
}
