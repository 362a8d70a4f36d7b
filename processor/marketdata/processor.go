// Package marketdata consumes market events from the bus and keeps the
// latest value per symbol in an expiring cache for read-side sampling.
package marketdata

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/cache"
)

// Config holds the processor's subscription and retention settings.
type Config struct {
	Address    string   // bus address carrying market data
	TradeTopic string   // trade topic base
	DepthTopic string   // depth topic base
	Symbols    []string // symbols to subscribe, empty means whole base
	TTL        time.Duration
	MaxEntries int
}

// Processor is the market-data consumer. It subscribes with one exact
// prefix per (base, symbol) pair and stores each event under
// "{category}.{symbol}".
type Processor struct {
	name   string
	b      *bus.Bus
	cfg    Config
	logger *slog.Logger

	store     *cache.Expiring[event.StreamEvent]
	sizeGauge prometheus.Gauge

	sub     *bus.Subscriber
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
}

// New creates a Processor with its own expiring store.
func New(name string, b *bus.Bus, cfg Config, logger *slog.Logger, storeOpts ...cache.Option[event.StreamEvent]) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", name)
	opts := append([]cache.Option[event.StreamEvent]{
		cache.WithLogger[event.StreamEvent](logger),
	}, storeOpts...)
	return &Processor{
		name:   name,
		b:      b,
		cfg:    cfg,
		logger: logger,
		store:  cache.New[event.StreamEvent](cfg.TTL, cfg.MaxEntries, opts...),
		done:   make(chan struct{}),
	}
}

// TrackStoreSize keeps gauge in step with the number of retained entries,
// refreshed as events arrive. Must be called before Start.
func (p *Processor) TrackStoreSize(gauge prometheus.Gauge) {
	p.sizeGauge = gauge
}

// Name implements component.LifecycleComponent.
func (p *Processor) Name() string { return p.name }

// filters composes one exact prefix per (base, symbol) pair, falling back to
// the bare bases when no symbols are configured.
func (p *Processor) filters() []string {
	if len(p.cfg.Symbols) == 0 {
		return []string{p.cfg.TradeTopic, p.cfg.DepthTopic}
	}
	out := make([]string, 0, 2*len(p.cfg.Symbols))
	for _, sym := range p.cfg.Symbols {
		out = append(out, event.ComposeTopic(p.cfg.TradeTopic, sym))
		out = append(out, event.ComposeTopic(p.cfg.DepthTopic, sym))
	}
	return out
}

// Initialize connects the subscription.
func (p *Processor) Initialize() error {
	sub, err := p.b.Subscribe(p.cfg.Address, p.filters()...)
	if err != nil {
		return errors.Wrap(err, p.name, "Initialize", "subscribe")
	}
	p.sub = sub
	p.logger.Info("subscribed to market topics", "filters", p.filters())
	return nil
}

// Start launches the consumer goroutine.
func (p *Processor) Start(ctx context.Context) error {
	if p.sub == nil {
		return errors.WrapFatal(errors.ErrNoSubscription, p.name, "Start", "not initialized")
	}
	if !p.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, p.name, "Start", "start")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.consume(runCtx)
	return nil
}

func (p *Processor) consume(ctx context.Context) {
	defer close(p.done)

	for {
		msg, err := p.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errors.ErrBusClosed) {
				return
			}
			p.logger.Warn("receive failed", "error", err)
			continue
		}
		ev, err := event.Decode(msg.Payload)
		if err != nil {
			p.logger.Warn("dropping undecodable message", "topic", msg.Topic, "error", err)
			continue
		}
		p.store.Set(Key(ev.Category, ev.Source), ev)
		if p.sizeGauge != nil {
			p.sizeGauge.Set(float64(p.store.Len()))
		}
	}
}

// Stop cancels the consumer, waits for it to drain, and joins the store's
// sweep task.
func (p *Processor) Stop(timeout time.Duration) error {
	if p.started.Load() && p.stopped.CompareAndSwap(false, true) {
		p.cancel()
		p.sub.Close()
		select {
		case <-p.done:
		case <-time.After(timeout):
			p.logger.Warn("stop grace period elapsed")
		}
	}
	p.store.Stop()
	return nil
}

// Key composes the cache key for one (category, symbol) pair.
func Key(category event.Category, symbol string) string {
	return category.String() + "." + symbol
}

// Latest returns the most recent event for a (category, symbol) pair. The
// boolean is false when nothing is cached.
func (p *Processor) Latest(category event.Category, symbol string) (event.StreamEvent, bool) {
	return p.store.Get(Key(category, symbol))
}

// StoreLen returns the number of cached entries.
func (p *Processor) StoreLen() int {
	return p.store.Len()
}
