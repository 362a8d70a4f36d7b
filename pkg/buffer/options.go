package buffer

type ringOptions[T any] struct {
	evictCallback func(T)
}

// Option configures a Ring.
type Option[T any] func(*ringOptions[T])

// WithEvictCallback registers a callback invoked with each item evicted to
// make room for a newer one. The callback runs outside the ring lock.
func WithEvictCallback[T any](cb func(T)) Option[T] {
	return func(o *ringOptions[T]) {
		o.evictCallback = cb
	}
}
