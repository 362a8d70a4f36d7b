package ingest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/backoff"
)

type fakeReader struct {
	records []Record
	err     error
	onRead  func()
}

func (f *fakeReader) Read(_ context.Context) (Record, error) {
	if f.onRead != nil {
		f.onRead()
	}
	if len(f.records) > 0 {
		rec := f.records[0]
		f.records = f.records[1:]
		return rec, nil
	}
	if f.err != nil {
		return Record{}, f.err
	}
	return Record{}, io.EOF
}

func (f *fakeReader) Close() error { return nil }

// scriptedSource plays back a fixed sequence of connect outcomes. A nil
// reader in the script means the attempt fails.
type scriptedSource struct {
	name   string
	script []*fakeReader
	calls  int
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Connect(_ context.Context) (RecordReader, error) {
	var r *fakeReader
	if s.calls < len(s.script) {
		r = s.script[s.calls]
	}
	s.calls++
	if r == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return r, nil
}

// delayRecorder captures backoff waits without elapsing real time.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) sleep(ctx context.Context, delay time.Duration) error {
	d.mu.Lock()
	d.delays = append(d.delays, delay)
	d.mu.Unlock()
	return ctx.Err()
}

func newTestBus(t *testing.T) (*bus.Bus, *bus.Publisher) {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)
	pub, err := b.Publisher("inproc://ingest")
	require.NoError(t, err)
	return b, pub
}

func TestRunnerBackoffSequenceAndGiveUp(t *testing.T) {
	_, pub := newTestBus(t)
	src := &scriptedSource{name: "market"} // every connect fails
	rec := &delayRecorder{}

	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: 8 * time.Second, MaxAttempts: 5}),
		WithSleep(rec.sleep),
	)
	r.Run(context.Background())

	// One delay per budgeted attempt: the fifth retry still waits out its
	// capped delay, then the next failure exhausts the budget.
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second,
	}, rec.delays)
	assert.Len(t, rec.delays, 5)
	assert.Equal(t, 6, src.calls)
	assert.Equal(t, StateStopped, r.State())
}

func TestRunnerDelayCappedAtMax(t *testing.T) {
	_, pub := newTestBus(t)
	src := &scriptedSource{name: "market"}
	rec := &delayRecorder{}

	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, MaxAttempts: 6}),
		WithSleep(rec.sleep),
	)
	r.Run(context.Background())

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second,
	}, rec.delays)
}

func TestRunnerStableConnectionResetsAttempts(t *testing.T) {
	_, pub := newTestBus(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	stable := &fakeReader{err: io.ErrUnexpectedEOF}
	stable.onRead = func() { now = now.Add(time.Minute) }

	src := &scriptedSource{
		name:   "market",
		script: []*fakeReader{nil, stable, nil, nil}, // fail, long-lived, fail, fail
	}
	rec := &delayRecorder{}

	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 3}),
		WithStableReset(30*time.Second),
		WithSleep(rec.sleep),
		WithClock(clock),
	)
	r.Run(context.Background())

	// The minute-long connection forgives the first failure, so the drop
	// restarts the sequence at the base delay.
	assert.Equal(t, []time.Duration{
		1 * time.Second, // after the initial failure
		1 * time.Second, // after the stable connection dropped
		2 * time.Second, // second consecutive failure
		4 * time.Second, // third consecutive failure, last budgeted retry
	}, rec.delays)
	assert.Equal(t, StateStopped, r.State())
}

func TestRunnerShortConnectionKeepsAttempts(t *testing.T) {
	_, pub := newTestBus(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	flaky := &fakeReader{err: io.ErrUnexpectedEOF} // drops immediately

	src := &scriptedSource{
		name:   "market",
		script: []*fakeReader{nil, flaky, nil},
	}
	rec := &delayRecorder{}

	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 4}),
		WithStableReset(30*time.Second),
		WithSleep(rec.sleep),
		WithClock(func() time.Time { return now }),
	)
	r.Run(context.Background())

	// No stable period, so the counter keeps climbing.
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, rec.delays)
}

func TestRunnerCancelDuringBackoff(t *testing.T) {
	_, pub := newTestBus(t)
	src := &scriptedSource{name: "market"}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 0}),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	r.Run(ctx)
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, 1, src.calls)
}

func TestRunnerPublishesClassifiedRecords(t *testing.T) {
	b, pub := newTestBus(t)
	sub, err := b.Subscribe("inproc://ingest", "binance_usdm_trade", "binance_usdm_depth", "raw_news")
	require.NoError(t, err)

	reader := &fakeReader{
		records: []Record{
			{Qualifier: "BTCUSDT", Type: "trade", Payload: json.RawMessage(`{"p":"50000"}`)},
			{Qualifier: "ethusdt", Type: "depth", Payload: json.RawMessage(`{"bids":[]}`)},
			{Qualifier: "crypto-news", Type: "channel", Source: "telegram", Text: "BTC breaks 50k"},
			{Qualifier: "btcusdt", Type: "kline"}, // unrecognized type
			{Qualifier: "", Type: "trade"},        // missing qualifier
		},
		err: io.ErrUnexpectedEOF,
	}
	src := &scriptedSource{name: "market", script: []*fakeReader{reader}}

	r := NewRunner(src, pub, DefaultTopics(),
		WithBackoff(backoff.Policy{BaseDelay: time.Second, MaxDelay: time.Second, MaxAttempts: 1}),
		WithSleep((&delayRecorder{}).sleep),
	)
	r.Run(context.Background())

	var topics []string
	for {
		msg, ok := sub.TryReceive()
		if !ok {
			break
		}
		ev, err := event.Decode(msg.Payload)
		require.NoError(t, err)
		require.NoError(t, ev.Validate())
		topics = append(topics, msg.Topic)
	}
	assert.Equal(t, []string{
		"binance_usdm_trade.btcusdt",
		"binance_usdm_depth.ethusdt",
		"raw_news.crypto-news",
	}, topics)
}

func TestIngestorLifecycle(t *testing.T) {
	b := bus.New()
	defer b.Close()

	in := NewIngestor("ingestor", b, "inproc://ingest", DefaultTopics(), nil,
		WithBackoff(backoff.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 1}),
	)
	in.AddSource(&scriptedSource{name: "a"})
	in.AddSource(&scriptedSource{name: "b"})

	// Stop before Start is a no-op.
	require.NoError(t, in.Stop(time.Second))

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	err := in.Start(context.Background())
	require.Error(t, err)

	require.NoError(t, in.Stop(time.Second))
	require.NoError(t, in.Stop(time.Second))
}

func TestIngestorStartRequiresInitialize(t *testing.T) {
	b := bus.New()
	defer b.Close()

	in := NewIngestor("ingestor", b, "inproc://ingest", DefaultTopics(), nil)
	err := in.Start(context.Background())
	require.Error(t, err)
}
