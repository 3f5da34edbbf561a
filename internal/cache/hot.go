// Package cache implements the in-memory tier of the context store: a map
// from user identity to the last prompt built for that user, stamped with the
// time it was refreshed.
//
// Validity is checked lazily at read time against a TTL; there is no
// background sweep. Memory therefore grows with the number of distinct users
// seen, which is acceptable for the small single-process deployments this
// relay targets. Moving to a multi-process deployment means replacing this
// type with a shared cache service.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the age after which a cached prompt is no longer used.
const DefaultTTL = 5 * time.Minute

// Entry is a cached prompt and the moment it was last refreshed. Entries are
// replaced as a whole and never partially updated.
type Entry struct {
	Prompt        string
	LastRefreshed time.Time
}

// HotCache is a TTL-checked, per-user prompt cache.
//
// This type is safe for concurrent use. Put, Delete and ClearAll are mutually
// exclusive; readers share a read lock.
type HotCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[int64]Entry
}

// New returns an empty HotCache. A non-positive ttl falls back to DefaultTTL;
// a nil clock falls back to time.Now.
func New(ttl time.Duration, now func() time.Time) *HotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &HotCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]Entry),
	}
}

// TTL reports the configured validity window.
func (c *HotCache) TTL() time.Duration { return c.ttl }

// Get returns the cached prompt for userID and its age, regardless of
// freshness.
func (c *HotCache) Get(userID int64) (prompt string, age time.Duration, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return "", 0, false
	}
	return e.Prompt, c.now().Sub(e.LastRefreshed), true
}

// Fresh returns the cached prompt for userID only when it is non-empty and
// younger than the TTL.
func (c *HotCache) Fresh(userID int64) (string, bool) {
	prompt, age, ok := c.Get(userID)
	if !ok || prompt == "" || age >= c.ttl {
		return "", false
	}
	return prompt, true
}

// Put overwrites (or inserts) the entry for userID, stamping the current time.
func (c *HotCache) Put(userID int64, prompt string) {
	e := Entry{Prompt: prompt, LastRefreshed: c.now()}
	c.mu.Lock()
	c.entries[userID] = e
	c.mu.Unlock()
}

// Delete drops the entry for userID. Missing keys are ignored.
func (c *HotCache) Delete(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// ClearAll drops every cached entry for every user.
func (c *HotCache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[int64]Entry)
	c.mu.Unlock()
}

// Len reports the number of cached users, fresh or stale.
func (c *HotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
