package chat

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	messages []Message
	closed   bool
}

func (f *fakeClient) Name() string { return "telegram" }

func (f *fakeClient) Connect(_ context.Context) (MessageReader, error) {
	return &fakeReader{client: f}, nil
}

type fakeReader struct {
	client *fakeClient
}

func (f *fakeReader) Next(_ context.Context) (Message, error) {
	if len(f.client.messages) == 0 {
		return Message{}, io.EOF
	}
	msg := f.client.messages[0]
	f.client.messages = f.client.messages[1:]
	return msg, nil
}

func (f *fakeReader) Close() error {
	f.client.closed = true
	return nil
}

func TestSourceMapsMessagesToRecords(t *testing.T) {
	date := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	client := &fakeClient{messages: []Message{
		{Chat: "crypto-news", Kind: KindChannel, MessageID: 42, Text: "BTC breaks 50k", Date: date},
		{Chat: "traders-lounge", Kind: KindGroup, Text: "anyone long here?", Date: date},
	}}

	src := NewSource(client)
	assert.Equal(t, "telegram", src.Name())

	reader, err := src.Connect(context.Background())
	require.NoError(t, err)

	rec, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "crypto-news", rec.Qualifier)
	assert.Equal(t, "channel", rec.Type)
	assert.Equal(t, "crypto-news", rec.Source)
	assert.Equal(t, "BTC breaks 50k", rec.Text)
	assert.Equal(t, date, rec.Timestamp)

	rec, err = reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "group", rec.Type)

	_, err = reader.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, reader.Close())
	assert.True(t, client.closed)
}
