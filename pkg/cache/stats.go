package cache

import "sync/atomic"

// Statistics tracks cache activity. Safe for concurrent use.
type Statistics struct {
	sets      atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	expiries  atomic.Int64
	evictions atomic.Int64
}

// NewStatistics creates a zeroed Statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Set records one store operation.
func (s *Statistics) Set() { s.sets.Add(1) }

// Hit records one successful lookup.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records one failed lookup.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Expire records one TTL removal.
func (s *Statistics) Expire() { s.expiries.Add(1) }

// Evict records one size-bound removal.
func (s *Statistics) Evict() { s.evictions.Add(1) }

// Sets returns total store operations.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Hits returns total successful lookups.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns total failed lookups.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Expiries returns total TTL removals.
func (s *Statistics) Expiries() int64 { return s.expiries.Load() }

// Evictions returns total size-bound removals.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }
