// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leapmux/leapmux-go/wire"
)

// streamPath is the hub's multiplexed event stream endpoint.
const streamPath = "/api/v1/events"

// defaultHandshakeTimeout bounds the WebSocket upgrade.
const defaultHandshakeTimeout = 10 * time.Second

// DialerConfig holds configuration for creating a Dialer.
type DialerConfig struct {
	// BaseURL is the hub root, e.g. "https://hub.leapmux.dev". Both
	// http(s) and ws(s) schemes are accepted.
	BaseURL string

	// Tokens supplies the bearer token attached to the upgrade
	// request. Required.
	Tokens wire.TokenSource

	// HandshakeTimeout bounds the WebSocket upgrade. Defaults to 10s.
	HandshakeTimeout time.Duration

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Dialer opens multiplexed event streams over WebSocket.
type Dialer struct {
	streamURL        string
	tokens           wire.TokenSource
	handshakeTimeout time.Duration
	logger           *slog.Logger
}

// NewDialer creates a Dialer from the given configuration.
func NewDialer(config DialerConfig) (*Dialer, error) {
	if config.Tokens == nil {
		return nil, fmt.Errorf("transport: DialerConfig.Tokens is required")
	}
	streamURL, err := websocketURL(config.BaseURL, streamPath)
	if err != nil {
		return nil, err
	}
	handshakeTimeout := config.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		streamURL:        streamURL,
		tokens:           config.Tokens,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}, nil
}

// websocketURL resolves the stream endpoint, mapping http(s) schemes
// to their WebSocket equivalents.
func websocketURL(baseURL, path string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("transport: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("transport: parse base URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q in base URL", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + path
	return parsed.String(), nil
}

// OpenStream dials the hub, sends the subscribe request as the first
// frame, and returns the live stream. The stream is torn down when ctx
// is cancelled or Close is called.
func (d *Dialer) OpenStream(ctx context.Context, request wire.SubscribeRequest) (wire.EventStream, error) {
	header := http.Header{}
	if token := d.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, response, err := dialer.DialContext(ctx, d.streamURL, header)
	if err != nil {
		if response != nil {
			defer response.Body.Close()
			return nil, hubErrorFromResponse(response)
		}
		return nil, fmt.Errorf("transport: websocket dial: %w", err)
	}

	if err := conn.WriteJSON(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: send subscribe request: %w", err)
	}

	stream := &wsStream{conn: conn, logger: d.logger, done: make(chan struct{})}
	// gorilla reads have no context parameter; cancellation closes the
	// connection out from under the blocked read.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stream.done:
		}
	}()
	return stream, nil
}

var _ wire.EventStream = (*wsStream)(nil)

// wsStream adapts one WebSocket connection to wire.EventStream.
type wsStream struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// Recv blocks for the next event frame. Frames that fail to decode
// are logged and skipped rather than killing the stream.
func (s *wsStream) Recv(ctx context.Context) (wire.Event, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return wire.Event{}, ctx.Err()
			}
			return wire.Event{}, fmt.Errorf("transport: read event frame: %w", err)
		}
		var event wire.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("discarding malformed event frame", "error", err)
			continue
		}
		return event, nil
	}
}

// Close tears the connection down. Idempotent.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	})
	return nil
}
