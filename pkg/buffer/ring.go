// Package buffer provides a fixed-capacity ring holding the most recent
// items in arrival order.
package buffer

import (
	"sync"
)

// Ring is a thread-safe fixed-capacity buffer. Appending to a full ring
// evicts the oldest item. Items are always read back in arrival order.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // oldest item

	stats *Statistics
	opts  *ringOptions[T]
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int, opts ...Option[T]) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	o := &ringOptions[T]{}
	for _, opt := range opts {
		opt(o)
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		opts:     o,
	}
}

// Append adds an item, evicting the oldest item when the ring is full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == r.capacity {
		evicted := r.items[r.tail]
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		r.stats.Evict()
		if r.opts.evictCallback != nil {
			// Outside the lock to avoid re-entrancy deadlocks.
			defer r.opts.evictCallback(evicted)
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	r.stats.Append()
	r.stats.UpdateSize(int64(r.size))
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Recent returns up to n of the most recently appended items in arrival
// order (oldest of the selection first). n <= 0 returns nil.
func (r *Ring[T]) Recent(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.size == 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.tail+start+i)%r.capacity]
	}
	return out
}

// RecentFunc returns up to n of the most recent items satisfying pred, in
// arrival order. It scans backwards from the newest item so the selection
// is always the latest matches.
func (r *Ring[T]) RecentFunc(n int, pred func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.size == 0 {
		return nil
	}
	matched := make([]T, 0, n)
	for i := r.size - 1; i >= 0 && len(matched) < n; i-- {
		item := r.items[(r.tail+i)%r.capacity]
		if pred(item) {
			matched = append(matched, item)
		}
	}
	// Reverse back into arrival order.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// Snapshot returns every held item in arrival order.
func (r *Ring[T]) Snapshot() []T {
	return r.Recent(r.capacity)
}

// Clear removes all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0
	r.stats.UpdateSize(0)
}

// Stats returns ring statistics.
func (r *Ring[T]) Stats() *Statistics {
	return r.stats
}
