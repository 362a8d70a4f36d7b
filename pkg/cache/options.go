package cache

import (
	"log/slog"
	"time"
)

// Option configures an Expiring cache.
type Option[V any] func(*Expiring[V])

// WithLogger sets the logger used for insert and eviction transitions.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(c *Expiring[V]) {
		if logger != nil {
			c.logger = logger.With("component", "cache")
		}
	}
}

// WithSweepInterval sets the background sweep tick. An interval <= 0
// disables the background task; callers then drive Sweep directly.
func WithSweepInterval[V any](d time.Duration) Option[V] {
	return func(c *Expiring[V]) {
		c.sweepInterval = d
	}
}

// WithClock replaces the time source. Used by tests to control entry age.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Expiring[V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvictCallback registers a callback invoked for every removed entry.
// The callback runs while the cache lock is held and must not call back
// into the cache.
func WithEvictCallback[V any](cb func(key string, value V, reason EvictReason)) Option[V] {
	return func(c *Expiring[V]) {
		c.onEvict = cb
	}
}
