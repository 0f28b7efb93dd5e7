// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "context"

// EventStream is one open multiplexed subscription. Recv yields
// events one at a time, blocking until an event arrives, the stream
// fails, or ctx is cancelled. After an error the stream is dead; the
// caller reconnects with a fresh SubscribeRequest.
//
// Close is idempotent and unblocks any in-flight Recv.
type EventStream interface {
	Recv(ctx context.Context) (Event, error)
	Close() error
}

// StreamOpener opens multiplexed event subscriptions. Two
// implementations exist:
//
//   - transport.Dialer: WebSocket connection to the hub. Used by the
//     client binaries.
//   - test fakes: channel-backed streams driving the watch package's
//     tests.
type StreamOpener interface {
	OpenStream(ctx context.Context, request SubscribeRequest) (EventStream, error)
}

// HistoryClient fetches paginated message history for one agent.
// The backlog counterpart of the live stream.
type HistoryClient interface {
	AgentMessages(ctx context.Context, request HistoryRequest) (*HistoryPage, error)
}

// TokenSource supplies the bearer token for hub calls. Token is
// synchronous and must not block; it returns the empty string when no
// credentials are available, which aborts a connection attempt
// without raising.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return TokenFunc(func() string { return token })
}
