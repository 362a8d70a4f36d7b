package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/backoff"
)

// Runner drives one stream through its connection state machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connecting ...
//
// with Connecting moving to GivingUp -> Stopped once the attempt budget is
// exhausted. A Connected period lasting at least stableReset zeroes the
// attempt counter. Each runner owns its goroutine; failure of one stream
// never affects another.
type Runner struct {
	source Source
	pub    *bus.Publisher
	topics TopicMap

	policy      backoff.Policy
	stableReset time.Duration

	logger  *slog.Logger
	metrics *metric.Metrics

	state    atomic.Int32
	attempts int // touched only by the run goroutine

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRunner creates a Runner for source, republishing onto pub.
func NewRunner(source Source, pub *bus.Publisher, topics TopicMap, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:      source,
		pub:         pub,
		topics:      topics,
		policy:      backoff.Default(),
		stableReset: 30 * time.Second,
		logger:      slog.Default(),
		sleep:       sleepCtx,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("stream", source.Name())
	return r
}

// State returns the runner's current connection state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Run executes the state machine until the context is cancelled or the
// attempt budget is exhausted. It always leaves the runner in StateStopped.
func (r *Runner) Run(ctx context.Context) {
	defer r.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return
		}
		r.setState(StateConnecting)
		reader, err := r.source.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("stream connect failed", "error", err)
			if !r.reconnect(ctx) {
				return
			}
			continue
		}

		r.setState(StateConnected)
		r.logger.Info("stream connected")
		connectedAt := r.now()

		readErr := r.pump(ctx, reader)
		_ = reader.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("stream connection lost", "error", readErr)

		// A sustained connected period forgives accumulated attempts.
		if r.stableReset > 0 && r.attempts > 0 && r.now().Sub(connectedAt) >= r.stableReset {
			r.logger.Info("stable connection period, resetting reconnect attempts",
				"previous_attempts", r.attempts)
			r.attempts = 0
		}
		if !r.reconnect(ctx) {
			return
		}
	}
}

// reconnect accounts one failed connection cycle and waits out the backoff
// delay. It returns false when the runner must stop, either because the
// attempt budget is exhausted or the context was cancelled.
func (r *Runner) reconnect(ctx context.Context) bool {
	r.attempts++
	if r.metrics != nil {
		r.metrics.ReconnectAttempts.WithLabelValues(r.source.Name()).Inc()
	}

	if r.policy.Exhausted(r.attempts) {
		r.setState(StateGivingUp)
		r.logger.Error("reconnect attempts exhausted, marking stream dead",
			"attempts", r.attempts)
		if r.metrics != nil {
			r.metrics.StreamsDead.WithLabelValues(r.source.Name()).Set(1)
		}
		return false
	}

	delay := r.policy.Delay(r.attempts)
	r.setState(StateReconnecting)
	r.logger.Warn("reconnecting", "attempt", r.attempts, "delay", delay)
	return r.sleep(ctx, delay) == nil
}

// pump reads records until the connection drops or the context is cancelled,
// republishing each valid record onto the bus.
func (r *Runner) pump(ctx context.Context, reader RecordReader) error {
	for {
		rec, err := reader.Read(ctx)
		if err != nil {
			return err
		}
		r.publish(rec)
	}
}

// publish classifies one record and republishes it under its composed topic.
// Records with an unrecognized type or missing qualifier are dropped with a
// warning and never propagate.
func (r *Runner) publish(rec Record) {
	category := event.ParseCategory(rec.Type)
	if category == event.CategoryUnknown {
		r.logger.Warn("dropping record with unrecognized type", "type", rec.Type)
		r.dropped("unknown_type")
		return
	}
	if rec.Qualifier == "" {
		r.logger.Warn("dropping record with missing qualifier", "type", rec.Type)
		r.dropped("missing_field")
		return
	}

	var base string
	switch {
	case category.IsChat():
		base = r.topics.News
	case category == event.CategoryTrade:
		base = r.topics.Trade
	case category == event.CategoryDepth:
		base = r.topics.Depth
	}

	source := rec.Source
	if source == "" {
		source = r.source.Name()
	}
	ev := event.New(source, category, rec.Text, rec.Payload, rec.Timestamp)
	ev.Topic = event.ComposeTopic(base, rec.Qualifier)
	if err := ev.Validate(); err != nil {
		r.logger.Warn("dropping invalid record", "error", err)
		r.dropped("invalid")
		return
	}

	r.pub.Publish(ev.Topic, ev)
	if r.metrics != nil {
		r.metrics.EventsIngested.WithLabelValues(r.source.Name(), category.String()).Inc()
	}
}

func (r *Runner) dropped(reason string) {
	if r.metrics != nil {
		r.metrics.EventsDropped.WithLabelValues(r.source.Name(), reason).Inc()
	}
}

// sleepCtx waits d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
