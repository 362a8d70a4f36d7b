package chat

import (
	"context"

	"github.com/ZhuYizhou2333/Market-insight-bot/ingest"
)

// Source adapts a Client to the ingest.Source contract.
type Source struct {
	client Client
}

// NewSource wraps a platform client.
func NewSource(client Client) *Source {
	return &Source{client: client}
}

// Name implements ingest.Source.
func (s *Source) Name() string { return s.client.Name() }

// Connect implements ingest.Source.
func (s *Source) Connect(ctx context.Context) (ingest.RecordReader, error) {
	mr, err := s.client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &recordReader{mr: mr}, nil
}

type recordReader struct {
	mr MessageReader
}

// Read maps the next chat message to an ingest record. The chat label
// becomes the topic qualifier and the kind becomes the raw category.
func (r *recordReader) Read(ctx context.Context) (ingest.Record, error) {
	msg, err := r.mr.Next(ctx)
	if err != nil {
		return ingest.Record{}, err
	}
	return ingest.Record{
		Qualifier: msg.Chat,
		Type:      string(msg.Kind),
		Source:    msg.Chat,
		Text:      msg.Text,
		Timestamp: msg.Date,
	}, nil
}

func (r *recordReader) Close() error {
	return r.mr.Close()
}
