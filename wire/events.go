// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/json"

// EventType discriminates the variants of the multiplexed stream.
type EventType string

const (
	// EventAgentMessage delivers a full ChatMessage. Fields: AgentID,
	// Message.
	EventAgentMessage EventType = "agent_message"
	// EventStreamChunk appends a delta to an agent's in-progress
	// assistant response. Fields: AgentID, Delta.
	EventStreamChunk EventType = "stream_chunk"
	// EventStreamEnd marks the end of an in-progress response.
	// Fields: AgentID.
	EventStreamEnd EventType = "stream_end"
	// EventStatusChange updates agent metadata. Fields: AgentID,
	// Status.
	EventStatusChange EventType = "status_change"
	// EventControlRequest asks the user for an out-of-band approval.
	// Fields: AgentID, RequestID, Payload.
	EventControlRequest EventType = "control_request"
	// EventControlCancel withdraws a pending control request.
	// Fields: AgentID, RequestID.
	EventControlCancel EventType = "control_cancel"
	// EventMessageError sets or clears a per-message delivery error.
	// Fields: AgentID, MessageID, Error (empty Error clears).
	EventMessageError EventType = "message_error"
	// EventMessageDeleted removes a message from the log. Fields:
	// AgentID, MessageID.
	EventMessageDeleted EventType = "message_deleted"
	// EventTerminalData carries raw terminal output bytes. Fields:
	// TerminalID, Data.
	EventTerminalData EventType = "terminal_data"
	// EventTerminalClosed marks a terminal as exited. Fields:
	// TerminalID.
	EventTerminalClosed EventType = "terminal_closed"
)

// Event is the envelope for every message on the multiplexed stream.
// Type selects the variant; the other fields are populated per the
// EventType constant documentation and left zero otherwise.
type Event struct {
	Type       EventType `json:"type"`
	AgentID    string    `json:"agent_id,omitempty"`
	TerminalID string    `json:"terminal_id,omitempty"`

	Message *ChatMessage `json:"message,omitempty"`
	Status  *AgentStatus `json:"status,omitempty"`

	// Delta is the streaming text fragment of a stream_chunk.
	Delta []byte `json:"delta,omitempty"`
	// Data is the raw terminal output of a terminal_data event.
	Data []byte `json:"data,omitempty"`

	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
