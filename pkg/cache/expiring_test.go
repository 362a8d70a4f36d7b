package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache[V any](clk *fakeClock, ttl time.Duration, maxSize int, opts ...Option[V]) *Expiring[V] {
	base := []Option[V]{
		WithSweepInterval[V](0), // tests drive Sweep directly
		WithClock[V](clk.Now),
	}
	return New[V](ttl, maxSize, append(base, opts...)...)
}

func TestSetGet(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[string](clk, time.Minute, 0)
	defer c.Stop()

	_, ok := c.Get("price.btcusdt")
	assert.False(t, ok)

	c.Set("price.btcusdt", "50000")
	v, ok := c.Get("price.btcusdt")
	require.True(t, ok)
	assert.Equal(t, "50000", v)

	c.Set("price.btcusdt", "50100")
	v, _ = c.Get("price.btcusdt")
	assert.Equal(t, "50100", v)
	assert.Equal(t, 1, c.Len())
}

func TestSweepExpiresOldEntries(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[int](clk, 10*time.Second, 0)
	defer c.Stop()

	c.Set("a", 1)
	clk.Advance(6 * time.Second)
	c.Set("b", 2)

	// "a" is 6s old, "b" is fresh: nothing past the TTL yet.
	assert.Equal(t, 0, c.Sweep())

	clk.Advance(5 * time.Second)
	// "a" is now 11s old, "b" 5s.
	assert.Equal(t, 1, c.Sweep())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Expiries())
}

func TestOverwriteRefreshesTimestamp(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[int](clk, 10*time.Second, 0)
	defer c.Stop()

	c.Set("k", 1)
	clk.Advance(8 * time.Second)
	c.Set("k", 2)
	clk.Advance(8 * time.Second)

	// 16s since first write but only 8s since the refresh.
	assert.Equal(t, 0, c.Sweep())
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMaxSizeEvictsSingleOldest(t *testing.T) {
	clk := newFakeClock()
	var evicted []string
	c := newTestCache[int](clk, 0, 3, WithEvictCallback[int](func(k string, _ int, reason EvictReason) {
		assert.Equal(t, EvictOldest, reason)
		evicted = append(evicted, k)
	}))
	defer c.Stop()

	c.Set("a", 1)
	clk.Advance(time.Second)
	c.Set("b", 2)
	clk.Advance(time.Second)
	c.Set("c", 3)
	assert.Equal(t, 3, c.Len())

	clk.Advance(time.Second)
	c.Set("d", 4)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"a"}, evicted)
	_, ok := c.Get("a")
	assert.False(t, ok)
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestMaxSizeHoldsAfterEverySet(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[int](clk, 0, 5)
	defer c.Stop()

	for i := 0; i < 50; i++ {
		clk.Advance(time.Millisecond)
		c.Set(string(rune('a'+i%26)), i)
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestDelete(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[int](clk, 0, 0)
	defer c.Stop()

	c.Set("k", 1)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestExpiredCallbackReason(t *testing.T) {
	clk := newFakeClock()
	var reasons []EvictReason
	c := newTestCache[int](clk, time.Second, 0, WithEvictCallback[int](func(_ string, _ int, reason EvictReason) {
		reasons = append(reasons, reason)
	}))
	defer c.Stop()

	c.Set("k", 1)
	clk.Advance(2 * time.Second)
	c.Sweep()
	assert.Equal(t, []EvictReason{EvictExpired}, reasons)
}

func TestStopJoinsSweeper(t *testing.T) {
	c := New[int](time.Minute, 0, WithSweepInterval[int](time.Millisecond))
	c.Set("k", 1)
	c.Stop()
	c.Stop() // idempotent
}

func TestStats(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache[int](clk, 0, 0)
	defer c.Stop()

	c.Set("k", 1)
	c.Get("k")
	c.Get("missing")

	assert.Equal(t, int64(1), c.Stats().Sets())
	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Misses())
}
