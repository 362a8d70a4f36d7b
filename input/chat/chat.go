// Package chat adapts a chat-platform client into an ingest source. The
// platform binding itself (Telegram or otherwise) lives behind the Client
// interface; this package owns only the record mapping.
package chat

import (
	"context"
	"time"
)

// Kind distinguishes broadcast channels from community groups. The analysis
// engine triggers on the two kinds at very different cadences.
type Kind string

// Chat kinds
const (
	KindChannel Kind = "channel"
	KindGroup   Kind = "group"
)

// Message is one chat message from the platform.
type Message struct {
	Chat      string // channel username or group title
	Kind      Kind
	MessageID int64
	Text      string
	Date      time.Time
}

// MessageReader yields messages from one live client session.
type MessageReader interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Client is the chat-platform binding boundary. Connect establishes one
// session; the ingest runner reconnects by calling it again.
type Client interface {
	Name() string
	Connect(ctx context.Context) (MessageReader, error)
}
