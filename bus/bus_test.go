package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

func TestPublisherIdempotent(t *testing.T) {
	b := New()
	defer b.Close()

	p1, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	p2, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestPublisherInvalidAddress(t *testing.T) {
	b := New()
	defer b.Close()

	for _, addr := range []string{"", "inproc://", "tcp://localhost:5555"} {
		_, err := b.Publisher(addr)
		require.Error(t, err, addr)
		assert.True(t, errors.IsFatal(err), addr)
	}
}

func TestPublishDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	sub, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)

	pub.Publish("raw_news.telegram", map[string]string{"text": "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "raw_news.telegram", msg.Topic)

	var got map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, "hello", got["text"])
}

func TestFilterIsExactPrefix(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://market")
	require.NoError(t, err)
	sub, err := b.Subscribe("inproc://market", "trade.btc")
	require.NoError(t, err)

	pub.Publish("trade.btcusdt", 1)
	pub.Publish("trade.ethusdt", 2)
	pub.Publish("xtrade.btcusdt", 3)

	msg, ok := sub.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "trade.btcusdt", msg.Topic)
	_, ok = sub.TryReceive()
	assert.False(t, ok)
}

// A topic matching two filters on the same subscription is delivered once
// per matching filter.
func TestOverlappingFiltersDeliverTwice(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://market")
	require.NoError(t, err)
	sub, err := b.Subscribe("inproc://market", "trade", "trade.btcusdt")
	require.NoError(t, err)

	pub.Publish("trade.btcusdt", map[string]string{"p": "50000"})

	var got int
	for {
		if _, ok := sub.TryReceive(); !ok {
			break
		}
		got++
	}
	assert.Equal(t, 2, got)
}

func TestSubscribeAlwaysNewHandle(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	s1, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)
	s2, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)
	require.NotSame(t, s1, s2)

	pub.Publish("raw_news", "x")

	_, ok := s1.TryReceive()
	assert.True(t, ok)
	_, ok = s2.TryReceive()
	assert.True(t, ok)
}

func TestSubscribeBeforePublisherBinds(t *testing.T) {
	b := New()
	defer b.Close()

	sub, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)
	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)

	pub.Publish("raw_news", "early")
	_, ok := sub.TryReceive()
	assert.True(t, ok)
}

func TestSerializeFailureDropsWithoutError(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	sub, err := b.Subscribe("inproc://news", "")
	require.NoError(t, err)

	// Channels are not JSON-serializable; the message is dropped.
	pub.Publish("raw_news", make(chan int))

	_, ok := sub.TryReceive()
	assert.False(t, ok)
}

func TestQueueFullDropsNewest(t *testing.T) {
	b := New(WithQueueSize(2))
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	sub, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)

	pub.Publish("raw_news", 1)
	pub.Publish("raw_news", 2)
	pub.Publish("raw_news", 3) // dropped

	var payloads []string
	for {
		msg, ok := sub.TryReceive()
		if !ok {
			break
		}
		payloads = append(payloads, string(msg.Payload))
	}
	assert.Equal(t, []string{"1", "2"}, payloads)
}

func TestReceiveContextCancel(t *testing.T) {
	b := New()
	defer b.Close()

	sub, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Receive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIdempotent(t *testing.T) {
	b := New()
	sub, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)

	b.Close()
	b.Close()
	sub.Close()

	_, err = sub.Receive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBusClosed)

	_, err = b.Publisher("inproc://news")
	require.Error(t, err)
	_, err = b.Subscribe("inproc://news")
	require.Error(t, err)
}

func TestSubscriberCloseDetaches(t *testing.T) {
	b := New()
	defer b.Close()

	pub, err := b.Publisher("inproc://news")
	require.NoError(t, err)
	s1, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)
	s2, err := b.Subscribe("inproc://news", "raw_news")
	require.NoError(t, err)

	s1.Close()
	pub.Publish("raw_news", "after close")

	_, ok := s2.TryReceive()
	assert.True(t, ok)
}
