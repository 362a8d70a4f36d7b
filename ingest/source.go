// Package ingest runs reconnect-resilient stream readers that decode,
// classify, and republish external records onto the bus.
package ingest

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one raw item read from an external stream, before classification.
type Record struct {
	// Qualifier becomes the topic suffix: an exchange symbol or chat label.
	Qualifier string
	// Type is the raw category label (trade, depth, channel, group).
	Type string
	// Source names the upstream that produced the record.
	Source string
	// Text carries free-text content for chat records.
	Text string
	// Payload carries the structured body for market records.
	Payload json.RawMessage
	// Timestamp is the upstream event time; zero means receive time.
	Timestamp time.Time
}

// RecordReader yields records from one live connection. Read blocks until a
// record arrives, the connection drops, or the context is cancelled.
type RecordReader interface {
	Read(ctx context.Context) (Record, error)
	Close() error
}

// Source is a connectable external stream. Connect establishes one live
// connection; the runner reconnects by calling it again.
type Source interface {
	Name() string
	Connect(ctx context.Context) (RecordReader, error)
}

// TopicMap holds the topic bases records are republished under, keyed by
// category family.
type TopicMap struct {
	News  string // channel and group records
	Trade string // aggregated trade ticks
	Depth string // order book depth updates
}

// DefaultTopics returns the standard topic bases.
func DefaultTopics() TopicMap {
	return TopicMap{
		News:  "raw_news",
		Trade: "binance_usdm_trade",
		Depth: "binance_usdm_depth",
	}
}
