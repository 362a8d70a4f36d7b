package buffer

import "sync/atomic"

// Statistics tracks ring activity. All counters are safe for concurrent use.
type Statistics struct {
	appends   atomic.Int64
	evictions atomic.Int64
	size      atomic.Int64
}

// NewStatistics creates a zeroed Statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Append records one appended item.
func (s *Statistics) Append() { s.appends.Add(1) }

// Evict records one evicted item.
func (s *Statistics) Evict() { s.evictions.Add(1) }

// UpdateSize records the current item count.
func (s *Statistics) UpdateSize(n int64) { s.size.Store(n) }

// Appends returns the total number of appended items.
func (s *Statistics) Appends() int64 { return s.appends.Load() }

// Evictions returns the total number of evicted items.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// Size returns the last recorded item count.
func (s *Statistics) Size() int64 { return s.size.Load() }
