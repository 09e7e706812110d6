// Package cache implements the bounded result cache and recent-calls
// dedup tracking that back the tool dispatcher (spec.md §4.4, §4.5).
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loomhq/loom/pkg/tools"
)

const (
	// DefaultCapacity is the default number of entries the result
	// cache holds before evicting the least-recently-inserted one.
	DefaultCapacity = 200
	// DefaultTTL is how long a cached Result stays valid after insert.
	DefaultTTL = 30 * time.Minute
)

// entry pairs a stored Result with its insertion time so TTL can be
// checked independently of the LRU library's own recency tracking.
type entry struct {
	result     tools.Result
	insertedAt time.Time
}

// ResultCache is a bounded, TTL-purging cache from call identifier to
// Result. The underlying library (golang-lru/v2) only implements
// plain LRU eviction by capacity; it has no TTL concept, so expiry is
// tracked alongside each entry's insert time here and purged lazily
// on Add/Get, matching spec.md §4.5's "purge on insert" wording.
type ResultCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

// New builds a ResultCache with the given capacity and TTL. A
// capacity or ttl of zero falls back to the package defaults.
func New(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c, _ := lru.New[string, entry](capacity)
	return &ResultCache{cache: c, ttl: ttl, now: time.Now}
}

// Put stores result under callID, evicting the oldest entry if the
// cache is already at capacity (handled by the underlying LRU), then
// purging any entry older than the TTL.
func (c *ResultCache) Put(callID string, result tools.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(callID, entry{result: result, insertedAt: c.now()})
	c.purgeExpiredLocked()
}

// Get returns the cached Result for callID, or false if absent or
// expired.
func (c *ResultCache) Get(callID string) (tools.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache.Peek(callID)
	if !ok {
		return tools.Result{}, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.cache.Remove(callID)
		return tools.Result{}, false
	}
	return e.result, true
}

// Len reports the number of entries currently cached (including any
// not yet lazily purged).
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *ResultCache) purgeExpiredLocked() {
	cutoff := c.now().Add(-c.ttl)
	for _, key := range c.cache.Keys() {
		e, ok := c.cache.Peek(key)
		if ok && e.insertedAt.Before(cutoff) {
			c.cache.Remove(key)
		}
	}
}
