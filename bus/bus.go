// Package bus provides the in-process topic-addressed publish/subscribe
// transport connecting ingestors to downstream consumers.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
)

// addressScheme is the only scheme the in-process transport accepts.
const addressScheme = "inproc://"

// Message is one delivered bus message: the topic frame plus the UTF-8
// JSON-encoded payload frame.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus manages publishers and subscribers keyed by address. One publisher
// binding exists per address; any number of subscriptions may attach to it.
type Bus struct {
	mu         sync.Mutex
	brokers    map[string]*broker
	publishers map[string]*Publisher
	closed     bool

	queueSize int
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// broker fans messages out to the subscribers attached to one address.
type broker struct {
	address string
	mu      sync.RWMutex
	subs    []*Subscriber
}

// New creates a Bus with the given options.
func New(opts ...Option) *Bus {
	b := &Bus{
		brokers:    make(map[string]*broker),
		publishers: make(map[string]*Publisher),
		queueSize:  1024,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger.Info("bus initialized", "queue_size", b.queueSize)
	return b
}

// validateAddress checks an address for the in-process scheme. A bad address
// is the bind-failure analogue and is fatal to the caller.
func validateAddress(address string) error {
	if !strings.HasPrefix(address, addressScheme) || len(address) == len(addressScheme) {
		return errors.WrapFatal(errors.ErrInvalidAddress, "bus", "validateAddress", address)
	}
	return nil
}

// brokerFor returns the broker for an address, creating it if necessary.
// Subscribers may attach before the publisher binds, mirroring
// connect-before-bind transports. Caller must hold b.mu.
func (b *Bus) brokerFor(address string) *broker {
	br, ok := b.brokers[address]
	if !ok {
		br = &broker{address: address}
		b.brokers[address] = br
	}
	return br
}

// Publisher returns the publisher handle bound to address. The binding is
// idempotent: repeat calls for the same address return the same handle. An
// invalid address is fatal and propagates to the caller.
func (b *Bus) Publisher(address string) (*Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.WrapFatal(errors.ErrBusClosed, "bus", "Publisher", "bind "+address)
	}
	if p, ok := b.publishers[address]; ok {
		return p, nil
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	p := &Publisher{
		bus:    b,
		broker: b.brokerFor(address),
	}
	b.publishers[address] = p
	b.logger.Info("publisher bound", "address", address)
	return p, nil
}

// Subscribe creates a new subscriber connected to address. Every call
// creates a fresh subscription; each filter is applied as an independent
// prefix subscription, so a topic matching two filters is delivered twice.
// A subscriber handle must be driven by a single consumer goroutine.
func (b *Bus) Subscribe(address string, filters ...string) (*Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.WrapFatal(errors.ErrBusClosed, "bus", "Subscribe", "connect "+address)
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	s := &Subscriber{
		address: address,
		filters: append([]string(nil), filters...),
		queue:   make(chan Message, b.queueSize),
		bus:     b,
	}

	br := b.brokerFor(address)
	br.mu.Lock()
	br.subs = append(br.subs, s)
	br.mu.Unlock()

	b.logger.Info("subscriber connected", "address", address, "filters", filters)
	return s, nil
}

// Close releases every publisher and subscriber handle. It is idempotent and
// safe to call after a partial initialization failure.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	brokers := make([]*broker, 0, len(b.brokers))
	for _, br := range b.brokers {
		brokers = append(brokers, br)
	}
	b.brokers = make(map[string]*broker)
	b.publishers = make(map[string]*Publisher)
	b.mu.Unlock()

	for _, br := range brokers {
		br.mu.Lock()
		subs := br.subs
		br.subs = nil
		br.mu.Unlock()
		for _, s := range subs {
			s.shutdown()
		}
	}
	b.logger.Info("bus closed")
}

// Publisher is a handle bound to one address.
type Publisher struct {
	bus    *Bus
	broker *broker
}

// Publish serializes payload to JSON and fans it out to every subscriber of
// the bound address whose filters match topic. A serialization failure drops
// the message with a logged error and is never retried; Publish does not
// return an error for it.
func (p *Publisher) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.bus.logger.Error("dropping message: payload serialization failed",
			"address", p.broker.address, "topic", topic, "error", err)
		if p.bus.metrics != nil {
			p.bus.metrics.BusDropped.WithLabelValues(p.broker.address, "serialize").Inc()
		}
		return
	}

	if p.bus.metrics != nil {
		p.bus.metrics.BusPublished.WithLabelValues(p.broker.address, topicBase(topic)).Inc()
	}

	msg := Message{Topic: topic, Payload: data}

	p.broker.mu.RLock()
	subs := p.broker.subs
	p.broker.mu.RUnlock()

	for _, s := range subs {
		// Matching is independent per filter: overlapping filters on the
		// same subscriber each produce a delivery.
		for _, f := range s.filters {
			if strings.HasPrefix(topic, f) {
				s.enqueue(p.bus, msg)
			}
		}
	}
}

// topicBase returns the portion of a composed topic before the first dot.
func topicBase(topic string) string {
	if i := strings.IndexByte(topic, '.'); i >= 0 {
		return topic[:i]
	}
	return topic
}

// Subscriber is a handle receiving messages for one subscription.
type Subscriber struct {
	address string
	filters []string
	queue   chan Message
	bus     *Bus

	mu     sync.Mutex
	closed bool

	droppedFull int64
}

// enqueue delivers one message copy, dropping the newest message when the
// subscriber queue is full.
func (s *Subscriber) enqueue(b *Bus, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- msg:
		if b.metrics != nil {
			b.metrics.BusDelivered.WithLabelValues(s.address).Inc()
		}
	default:
		s.droppedFull++
		b.logger.Warn("subscriber queue full, dropping message",
			"address", s.address, "topic", msg.Topic, "dropped_total", s.droppedFull)
		if b.metrics != nil {
			b.metrics.BusDropped.WithLabelValues(s.address, "queue_full").Inc()
		}
	}
}

// Receive blocks until a message is available, the context is cancelled, or
// the bus is closed.
func (s *Subscriber) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-s.queue:
		if !ok {
			return Message{}, errors.WrapTransient(errors.ErrBusClosed, "Subscriber", "Receive", "read queue")
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("bus receive: %w", ctx.Err())
	}
}

// TryReceive returns the next queued message without blocking. The second
// return value is false when no message is queued.
func (s *Subscriber) TryReceive() (Message, bool) {
	select {
	case msg, ok := <-s.queue:
		if !ok {
			return Message{}, false
		}
		return msg, true
	default:
		return Message{}, false
	}
}

// Filters returns the subscription's filter list.
func (s *Subscriber) Filters() []string {
	return append([]string(nil), s.filters...)
}

// Close detaches the subscriber from its address and releases its queue.
// Safe to call more than once.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	br, ok := s.bus.brokers[s.address]
	s.bus.mu.Unlock()

	if ok {
		br.mu.Lock()
		for i, sub := range br.subs {
			if sub == s {
				br.subs = append(br.subs[:i], br.subs[i+1:]...)
				break
			}
		}
		br.mu.Unlock()
	}
	s.shutdown()
}

// shutdown closes the delivery queue exactly once.
func (s *Subscriber) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
