// Package event defines the stream event model shared by ingestors, the bus,
// and downstream consumers.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/google/uuid"
)

// Category classifies an ingested event. Unknown is a distinct rejected
// variant: events that cannot be classified are dropped at the ingest
// boundary, never silently tolerated downstream.
type Category string

// Known event categories
const (
	// Chat categories
	CategoryChannel Category = "channel" // broadcast news channel message
	CategoryGroup   Category = "group"   // community group message

	// Market categories
	CategoryTrade Category = "trade" // aggregated trade tick
	CategoryDepth Category = "depth" // order book depth update

	// CategoryUnknown marks records that failed classification
	CategoryUnknown Category = "unknown"
)

// ParseCategory maps a raw type label to a Category. Unrecognized labels map
// to CategoryUnknown.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryChannel:
		return CategoryChannel
	case CategoryGroup:
		return CategoryGroup
	case CategoryTrade:
		return CategoryTrade
	case CategoryDepth:
		return CategoryDepth
	default:
		return CategoryUnknown
	}
}

// IsChat reports whether the category belongs to the chat family.
func (c Category) IsChat() bool {
	return c == CategoryChannel || c == CategoryGroup
}

// IsMarket reports whether the category belongs to the market-data family.
func (c Category) IsMarket() bool {
	return c == CategoryTrade || c == CategoryDepth
}

// String returns the category label.
func (c Category) String() string { return string(c) }

// StreamEvent is a single decoded event in transit. Events are immutable once
// published: the bus serializes them to JSON and every consumer receives its
// own copy.
type StreamEvent struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`            // channel name or exchange symbol
	Category  Category        `json:"category"`          // classification label
	Text      string          `json:"text,omitempty"`    // free-text payload (chat)
	Payload   json.RawMessage `json:"payload,omitempty"` // structured payload (market)
	Timestamp time.Time       `json:"timestamp"`
	Topic     string          `json:"topic"` // topic the event was published under
}

// New creates a StreamEvent with a fresh ID and the given fields.
func New(source string, category Category, text string, payload json.RawMessage, ts time.Time) StreamEvent {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return StreamEvent{
		ID:        uuid.NewString(),
		Source:    source,
		Category:  category,
		Text:      text,
		Payload:   payload,
		Timestamp: ts,
	}
}

// Validate checks the event for required fields.
func (e *StreamEvent) Validate() error {
	if e.Category == CategoryUnknown || e.Category == "" {
		return errors.WrapInvalid(errors.ErrUnknownType, "StreamEvent", "Validate",
			fmt.Sprintf("category %q", e.Category))
	}
	if e.Source == "" {
		return errors.WrapInvalid(errors.ErrMissingField, "StreamEvent", "Validate", "source")
	}
	if e.Timestamp.IsZero() {
		return errors.WrapInvalid(errors.ErrMissingField, "StreamEvent", "Validate", "timestamp")
	}
	return nil
}

// ComposeTopic builds the composed topic string "{base}.{qualifier}". The
// qualifier is lowercased so market symbols and chat labels address
// consistently. A subscriber filtering on base alone receives every qualifier
// under that base; that breadth is deliberate and relied upon by the analyzer.
func ComposeTopic(base, qualifier string) string {
	qualifier = strings.ToLower(strings.TrimSpace(qualifier))
	if qualifier == "" {
		return base
	}
	return base + "." + qualifier
}

// Decode unmarshals a bus payload back into a StreamEvent.
func Decode(data []byte) (StreamEvent, error) {
	var e StreamEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return StreamEvent{}, errors.WrapInvalid(err, "StreamEvent", "Decode", "unmarshal payload")
	}
	return e, nil
}
