package bus

import (
	"log/slog"

	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for bus lifecycle and drop events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.With("component", "bus")
		}
	}
}

// WithQueueSize sets the per-subscriber delivery queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithMetrics enables Prometheus instrumentation of publish, delivery and
// drop counts.
func WithMetrics(m *metric.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}
