package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

// Listener feeds the engine from a bus subscription. A single consumer
// goroutine drives Ingest sequentially, which is what keeps the engine's
// trigger accounting serialized.
type Listener struct {
	name    string
	b       *bus.Bus
	address string
	filters []string
	engine  *Engine
	logger  *slog.Logger

	sub     *bus.Subscriber
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
	once    sync.Once
}

// NewListener creates a Listener subscribing to address with the given
// prefix filters.
func NewListener(name string, b *bus.Bus, address string, filters []string, engine *Engine, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		name:    name,
		b:       b,
		address: address,
		filters: filters,
		engine:  engine,
		logger:  logger.With("component", name),
		done:    make(chan struct{}),
	}
}

// Name implements component.LifecycleComponent.
func (l *Listener) Name() string { return l.name }

// Initialize connects the subscription.
func (l *Listener) Initialize() error {
	sub, err := l.b.Subscribe(l.address, l.filters...)
	if err != nil {
		return errors.Wrap(err, l.name, "Initialize", "subscribe")
	}
	l.sub = sub
	return nil
}

// Start launches the consumer goroutine.
func (l *Listener) Start(ctx context.Context) error {
	if l.sub == nil {
		return errors.WrapFatal(errors.ErrNoSubscription, l.name, "Start", "not initialized")
	}
	if !l.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, l.name, "Start", "start")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	go l.consume(runCtx)
	l.logger.Info("listener started", "address", l.address, "filters", l.filters)
	return nil
}

// consume is the single consumer loop.
func (l *Listener) consume(ctx context.Context) {
	defer close(l.done)

	for {
		msg, err := l.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errors.ErrBusClosed) {
				return
			}
			l.logger.Warn("receive failed", "error", err)
			continue
		}
		ev, err := event.Decode(msg.Payload)
		if err != nil {
			l.logger.Warn("dropping undecodable message", "topic", msg.Topic, "error", err)
			continue
		}
		l.engine.Ingest(ctx, ev)
	}
}

// Stop cancels the consumer and waits up to timeout for it to drain.
func (l *Listener) Stop(timeout time.Duration) error {
	if !l.started.Load() || !l.stopped.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	l.once.Do(func() { l.sub.Close() })

	select {
	case <-l.done:
		l.logger.Info("listener stopped")
	case <-time.After(timeout):
		l.logger.Warn("stop grace period elapsed")
	}
	return nil
}
