// Package marketws implements an ingest source reading the Binance USD-M
// futures combined websocket stream.
package marketws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/ingest"
)

// DefaultEndpoint is the Binance USD-M futures combined stream endpoint.
const DefaultEndpoint = "wss://fstream.binance.com/stream"

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20 // 1 MiB, depth snapshots are large
	pongWait         = 90 * time.Second
)

// Config describes the streams to subscribe.
type Config struct {
	Endpoint string   // combined stream URL, DefaultEndpoint when empty
	Symbols  []string // e.g. btcusdt, ethusdt
	Channels []string // e.g. aggTrade, depth20
}

// Source dials the combined stream and yields one record per market event.
type Source struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer
}

// New creates a market websocket source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:    cfg,
		logger: logger.With("stream", "binance_usdm"),
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Name implements ingest.Source.
func (s *Source) Name() string { return "binance_usdm" }

// streamURL composes the combined stream query:
// {endpoint}?streams={symbol}@{channel}/{symbol}@{channel}/...
func (s *Source) streamURL() (string, error) {
	if len(s.cfg.Symbols) == 0 || len(s.cfg.Channels) == 0 {
		return "", errors.WrapFatal(errors.ErrMissingConfig, "marketws", "streamURL", "symbols and channels")
	}
	streams := make([]string, 0, len(s.cfg.Symbols)*len(s.cfg.Channels))
	for _, sym := range s.cfg.Symbols {
		for _, ch := range s.cfg.Channels {
			streams = append(streams, strings.ToLower(sym)+"@"+ch)
		}
	}
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", errors.WrapFatal(err, "marketws", "streamURL", "parse endpoint")
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect implements ingest.Source.
func (s *Source) Connect(ctx context.Context) (ingest.RecordReader, error) {
	target, err := s.streamURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "marketws", "Connect", "dial "+target)
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	s.logger.Info("combined stream connected", "url", target)
	return &reader{conn: conn, logger: s.logger}, nil
}

// combinedFrame is one message from the combined stream.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// marketEvent carries the fields every Binance market payload shares.
type marketEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
}

// reader yields records from one live connection.
type reader struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// Read returns the next market record. Frames missing the event type or
// symbol are logged and skipped, never surfaced as records.
func (r *reader) Read(ctx context.Context) (ingest.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ingest.Record{}, err
		}
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return ingest.Record{}, errors.WrapTransient(err, "marketws", "Read", "read frame")
		}
		rec, ok := ParseFrame(data, r.logger)
		if !ok {
			continue
		}
		return rec, nil
	}
}

// Close closes the underlying connection.
func (r *reader) Close() error {
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return r.conn.Close()
}

// ParseFrame decodes one combined-stream frame into a record. The boolean is
// false when the frame must be skipped.
func ParseFrame(data []byte, logger *slog.Logger) (ingest.Record, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Warn("skipping undecodable frame", "error", err)
		return ingest.Record{}, false
	}
	var ev marketEvent
	if err := json.Unmarshal(frame.Data, &ev); err != nil {
		logger.Warn("skipping frame with undecodable data", "stream", frame.Stream, "error", err)
		return ingest.Record{}, false
	}
	if ev.EventType == "" {
		logger.Warn("event type not found in stream data", "stream", frame.Stream)
		return ingest.Record{}, false
	}
	if ev.Symbol == "" {
		logger.Warn("symbol not found in stream data", "stream", frame.Stream)
		return ingest.Record{}, false
	}

	var recType string
	switch ev.EventType {
	case "trade", "aggTrade":
		recType = "trade"
	case "depthUpdate":
		recType = "depth"
	default:
		// Unrecognized market events propagate as-is; the runner drops them
		// with its own warning and metric.
		recType = ev.EventType
	}

	var ts time.Time
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime).UTC()
	}
	return ingest.Record{
		Qualifier: strings.ToLower(ev.Symbol),
		Type:      recType,
		Source:    strings.ToLower(ev.Symbol),
		Payload:   frame.Data,
		Timestamp: ts,
	}, true
}
