// Package cache provides a keyed expiring store with a background sweep.
// Downstream consumers use it to hold the latest value per key, bounded by
// both age and entry count.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	written time.Time
}

// Expiring is a TTL-bounded key/value store. A single mutex covers Set, Get,
// Delete and the sweep pass; no other lock is taken while it is held.
type Expiring[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]

	ttl     time.Duration
	maxSize int

	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	onEvict       func(key string, value V, reason EvictReason)
	stats         *Statistics

	stopOnce sync.Once
	done     chan struct{}
	swept    chan struct{}
}

// EvictReason states why an entry left the cache.
type EvictReason string

const (
	// EvictExpired marks removal by the background sweep after the TTL.
	EvictExpired EvictReason = "expired"
	// EvictOldest marks removal of the oldest entry to honor the size bound.
	EvictOldest EvictReason = "oldest"
)

// New creates an Expiring cache and starts its sweep task. ttl <= 0 disables
// age-based expiry; maxSize <= 0 disables the size bound. Call Stop to join
// the sweep task.
func New[V any](ttl time.Duration, maxSize int, opts ...Option[V]) *Expiring[V] {
	c := &Expiring[V]{
		entries:       make(map[string]entry[V]),
		ttl:           ttl,
		maxSize:       maxSize,
		sweepInterval: time.Second,
		now:           time.Now,
		logger:        slog.Default(),
		stats:         NewStatistics(),
		done:          make(chan struct{}),
		swept:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sweepInterval > 0 {
		go c.sweepLoop()
	} else {
		close(c.swept)
	}
	return c
}

// Set stores value under key with the current timestamp. The first insert of
// a key logs an "inserted" transition; overwrites refresh the timestamp
// silently. When the store then exceeds its size bound, the single entry
// with the oldest timestamp is evicted.
func (c *Expiring[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.logger.Debug("cache key inserted", "key", key)
	}
	c.entries[key] = entry[V]{value: value, written: c.now()}
	c.stats.Set()

	if c.maxSize > 0 && len(c.entries) > c.maxSize {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the entry with the oldest write timestamp.
// Caller must hold c.mu.
func (c *Expiring[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.written.Before(oldest) {
			oldestKey, oldest, found = k, e.written, true
		}
	}
	if !found {
		return
	}
	victim := c.entries[oldestKey]
	delete(c.entries, oldestKey)
	c.stats.Evict()
	c.logger.Debug("cache key evicted", "key", oldestKey, "reason", EvictOldest)
	if c.onEvict != nil {
		c.onEvict(oldestKey, victim.value, EvictOldest)
	}
}

// Get returns the value stored under key. The boolean is false when the key
// is absent. Expired entries remain visible until the sweep removes them.
func (c *Expiring[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		c.stats.Miss()
		return zero, false
	}
	c.stats.Hit()
	return e.value, true
}

// Delete removes key, reporting whether it was present.
func (c *Expiring[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Len returns the current entry count.
func (c *Expiring[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep runs one expiry pass, removing and logging every entry older than
// the TTL. It returns the number of removed entries. The background task
// calls this on every tick; tests may call it directly.
func (c *Expiring[V]) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for k, e := range c.entries {
		if e.written.Before(cutoff) {
			delete(c.entries, k)
			removed++
			c.stats.Expire()
			c.logger.Debug("cache key expired", "key", k, "age", c.now().Sub(e.written))
			if c.onEvict != nil {
				c.onEvict(k, e.value, EvictExpired)
			}
		}
	}
	return removed
}

// sweepLoop drives Sweep on the configured tick until Stop.
func (c *Expiring[V]) sweepLoop() {
	defer close(c.swept)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// Stop signals the sweep task to exit and joins it. Idempotent.
func (c *Expiring[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	<-c.swept
}

// Stats returns cache statistics.
func (c *Expiring[V]) Stats() *Statistics {
	return c.stats
}
