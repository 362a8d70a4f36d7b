package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/component"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// Ingestor owns one runner per registered source. It binds a single bus
// publisher at initialization and fans every stream's records through it.
type Ingestor struct {
	name    string
	b       *bus.Bus
	address string
	topics  TopicMap
	sources []Source
	opts    []RunnerOption
	logger  *slog.Logger

	pub     *bus.Publisher
	runners []*Runner
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool
}

// NewIngestor creates an Ingestor publishing to address on b. The runner
// options are applied to every stream runner.
func NewIngestor(name string, b *bus.Bus, address string, topics TopicMap, logger *slog.Logger, opts ...RunnerOption) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		name:    name,
		b:       b,
		address: address,
		topics:  topics,
		logger:  logger.With("component", name),
		opts:    opts,
	}
}

// AddSource registers a stream. Must be called before Start.
func (in *Ingestor) AddSource(s Source) {
	in.sources = append(in.sources, s)
}

// Name implements component.LifecycleComponent.
func (in *Ingestor) Name() string { return in.name }

// Initialize binds the bus publisher.
func (in *Ingestor) Initialize() error {
	pub, err := in.b.Publisher(in.address)
	if err != nil {
		return errors.Wrap(err, in.name, "Initialize", "bind publisher")
	}
	in.pub = pub
	return nil
}

// Start launches one runner goroutine per source. Streams are independent:
// one stream exhausting its attempts does not affect the others.
func (in *Ingestor) Start(ctx context.Context) error {
	if in.pub == nil {
		return errors.WrapFatal(errors.ErrNotStarted, in.name, "Start", "not initialized")
	}
	if !in.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, in.name, "Start", "start")
	}

	runCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel

	for _, src := range in.sources {
		opts := append([]RunnerOption{WithLogger(in.logger)}, in.opts...)
		r := NewRunner(src, in.pub, in.topics, opts...)
		in.runners = append(in.runners, r)
		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			r.Run(runCtx)
		}()
	}
	in.logger.Info("ingestor started", "streams", len(in.sources))
	return nil
}

// Stop cancels every runner and waits up to timeout for them to drain. A
// runner still alive after the grace period is considered stopped regardless.
// Safe to call multiple times and before Start.
func (in *Ingestor) Stop(timeout time.Duration) error {
	if !in.started.Load() || !in.stopped.CompareAndSwap(false, true) {
		return nil
	}
	in.cancel()

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		in.logger.Info("ingestor stopped")
	case <-time.After(timeout):
		in.logger.Warn("stop grace period elapsed, abandoning remaining runners")
	}
	return nil
}

// Health reports per-stream connection states.
func (in *Ingestor) Health() component.HealthStatus {
	if !in.started.Load() {
		return component.HealthStatus{State: "created"}
	}
	live := 0
	detail := ""
	for _, r := range in.runners {
		st := r.State()
		if st != StateStopped && st != StateGivingUp {
			live++
		}
		if detail != "" {
			detail += ", "
		}
		detail += fmt.Sprintf("%s=%s", r.source.Name(), st)
	}
	return component.HealthStatus{
		Healthy: live > 0 || len(in.runners) == 0,
		State:   "started",
		Detail:  detail,
	}
}
