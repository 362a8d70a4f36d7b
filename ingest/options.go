package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/backoff"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackoff sets the reconnection backoff policy.
func WithBackoff(p backoff.Policy) RunnerOption {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithStableReset sets the connected duration after which the reconnect
// attempt counter resets to zero. A value <= 0 disables the reset.
func WithStableReset(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.stableReset = d
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation of ingest activity.
func WithMetrics(m *metric.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithSleep replaces the backoff wait. Used by tests to observe delays
// without elapsing real time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithClock replaces the time source used for stable-period measurement.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}
