package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhuYizhou2333/Market-insight-bot/bus"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

func TestListenerFeedsEngine(t *testing.T) {
	b := bus.New()
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)

	cfg := Config{
		BufferSize:        100,
		CategoryIntervals: map[event.Category]int{event.CategoryChannel: 3},
		SummarySampleSize: 10,
	}
	e, s, _, _ := newTestEngine(cfg)
	l := NewListener("news-listener", b, "inproc://news", []string{"raw_news"}, e, nil)

	require.NoError(t, l.Initialize())
	require.NoError(t, l.Start(context.Background()))

	for i := 0; i < 3; i++ {
		ev := chatEvent(event.CategoryChannel, "news item")
		pub.Publish("raw_news.crypto-news", ev)
	}
	pub.Publish("raw_news.crypto-news", "not an event object") // dropped at decode

	// The consumer is asynchronous; wait for the trigger to land.
	require.Eventually(t, func() bool {
		return e.Snapshot().TotalEvents >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []event.Category{event.CategoryChannel}, s.calls)

	require.NoError(t, l.Stop(time.Second))
	require.NoError(t, l.Stop(time.Second))
}

func TestListenerStartRequiresInitialize(t *testing.T) {
	b := bus.New()
	defer b.Close()

	e, _, _, _ := newTestEngine(Config{BufferSize: 10})
	l := NewListener("news-listener", b, "inproc://news", nil, e, nil)
	require.Error(t, l.Start(context.Background()))
	require.NoError(t, l.Stop(time.Second))
}

func TestListenerStopBeforeStart(t *testing.T) {
	b := bus.New()
	defer b.Close()

	e, _, _, _ := newTestEngine(Config{BufferSize: 10})
	l := NewListener("news-listener", b, "inproc://news", []string{"raw_news"}, e, nil)
	require.NoError(t, l.Initialize())
	require.NoError(t, l.Stop(time.Second))
}
