package marketdata

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/cache"
)

func marketEvent(category event.Category, symbol, payload string) event.StreamEvent {
	ev := event.New(symbol, category, "", json.RawMessage(payload), time.Now().UTC())
	return ev
}

func newTestProcessor(t *testing.T) (*Processor, *bus.Publisher) {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)

	pub, err := b.Publisher("inproc://market")
	require.NoError(t, err)

	p := New("market-processor", b, Config{
		Address:    "inproc://market",
		TradeTopic: "binance_usdm_trade",
		DepthTopic: "binance_usdm_depth",
		Symbols:    []string{"btcusdt", "ethusdt"},
		TTL:        time.Minute,
		MaxEntries: 100,
	}, nil, cache.WithSweepInterval[event.StreamEvent](0))

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(time.Second) })
	return p, pub
}

func TestProcessorKeepsLatestPerKey(t *testing.T) {
	p, pub := newTestProcessor(t)

	first := marketEvent(event.CategoryTrade, "btcusdt", `{"p":"50000"}`)
	second := marketEvent(event.CategoryTrade, "btcusdt", `{"p":"50100"}`)
	depth := marketEvent(event.CategoryDepth, "btcusdt", `{"bids":[]}`)

	pub.Publish("binance_usdm_trade.btcusdt", first)
	pub.Publish("binance_usdm_trade.btcusdt", second)
	pub.Publish("binance_usdm_depth.btcusdt", depth)

	require.Eventually(t, func() bool {
		ev, ok := p.Latest(event.CategoryTrade, "btcusdt")
		return ok && string(ev.Payload) == `{"p":"50100"}`
	}, time.Second, 5*time.Millisecond)

	// Trade and depth occupy separate keys for the same symbol.
	_, ok := p.Latest(event.CategoryDepth, "btcusdt")
	assert.True(t, ok)
	assert.Equal(t, 2, p.StoreLen())
}

func TestProcessorTracksStoreSizeGauge(t *testing.T) {
	b := bus.New()
	t.Cleanup(b.Close)
	pub, err := b.Publisher("inproc://market")
	require.NoError(t, err)

	registry := metric.NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insightbot",
		Subsystem: "market_processor",
		Name:      "store_entries",
		Help:      "Market data entries currently retained in the expiring store.",
	})
	require.NoError(t, registry.RegisterGauge("market-processor", "store_entries", gauge))

	p := New("market-processor", b, Config{
		Address:    "inproc://market",
		TradeTopic: "binance_usdm_trade",
		DepthTopic: "binance_usdm_depth",
		Symbols:    []string{"btcusdt"},
		TTL:        time.Minute,
		MaxEntries: 100,
	}, nil, cache.WithSweepInterval[event.StreamEvent](0))
	p.TrackStoreSize(gauge)

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(time.Second) })

	pub.Publish("binance_usdm_trade.btcusdt", marketEvent(event.CategoryTrade, "btcusdt", `{"p":"1"}`))
	pub.Publish("binance_usdm_depth.btcusdt", marketEvent(event.CategoryDepth, "btcusdt", `{"bids":[]}`))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(gauge) == 2
	}, time.Second, 5*time.Millisecond)

	// Overwrites keep the gauge at the number of distinct keys.
	pub.Publish("binance_usdm_trade.btcusdt", marketEvent(event.CategoryTrade, "btcusdt", `{"p":"2"}`))
	require.Eventually(t, func() bool {
		ev, ok := p.Latest(event.CategoryTrade, "btcusdt")
		return ok && string(ev.Payload) == `{"p":"2"}`
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(gauge))
}

func TestProcessorIgnoresUnsubscribedSymbols(t *testing.T) {
	p, pub := newTestProcessor(t)

	pub.Publish("binance_usdm_trade.dogeusdt", marketEvent(event.CategoryTrade, "dogeusdt", `{}`))
	pub.Publish("binance_usdm_trade.ethusdt", marketEvent(event.CategoryTrade, "ethusdt", `{}`))

	require.Eventually(t, func() bool {
		_, ok := p.Latest(event.CategoryTrade, "ethusdt")
		return ok
	}, time.Second, 5*time.Millisecond)

	_, ok := p.Latest(event.CategoryTrade, "dogeusdt")
	assert.False(t, ok)
}

func TestProcessorFiltersWithoutSymbols(t *testing.T) {
	b := bus.New()
	defer b.Close()
	p := New("market-processor", b, Config{
		Address:    "inproc://market",
		TradeTopic: "binance_usdm_trade",
		DepthTopic: "binance_usdm_depth",
	}, nil, cache.WithSweepInterval[event.StreamEvent](0))
	defer p.store.Stop()

	assert.Equal(t, []string{"binance_usdm_trade", "binance_usdm_depth"}, p.filters())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "trade.btcusdt", Key(event.CategoryTrade, "btcusdt"))
}
