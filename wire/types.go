// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/json"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message typed by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a model turn (text and tool invocations).
	RoleAssistant Role = "assistant"
	// RoleResult is the terminal record of a completed turn.
	RoleResult Role = "result"
	// RoleNotification is a system notification injected by the hub
	// (context usage, context cleared, interruptions). Some
	// notifications are ephemeral and never enter the message log.
	RoleNotification Role = "notification"
)

// ChatMessage is one persisted turn fragment belonging to an agent.
//
// Seq is assigned by the hub: a monotonically increasing counter,
// unique and totally ordered within one agent. Within one agent's log
// entries are sorted by Seq ascending. A message's ID may be revised
// in place with a new Seq through a thread merge — that is an update,
// never a duplicate.
//
// Content is opaque to the wire layer: compressed bytes tagged by
// ContentCompression, decoded by lib/msgcodec.
type ChatMessage struct {
	ID                 string `json:"id"`
	AgentID            string `json:"agent_id"`
	Seq                int64  `json:"seq"`
	Role               Role   `json:"role"`
	Content            []byte `json:"content,omitempty"`
	ContentCompression string `json:"content_compression,omitempty"`
	// DeliveryError is set by the hub when the message could not be
	// delivered to the agent process. A per-message fault, not a
	// stream fault.
	DeliveryError string `json:"delivery_error,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// AgentStatus is the metadata snapshot carried by a status_change event.
type AgentStatus struct {
	// Status is the agent lifecycle state ("active", "inactive", ...).
	Status string `json:"status"`
	// SessionID is the underlying model session, empty when none.
	SessionID      string `json:"session_id,omitempty"`
	PermissionMode string `json:"permission_mode,omitempty"`
	Model          string `json:"model,omitempty"`
	Effort         string `json:"effort,omitempty"`
	// WorkerOnline reports whether the worker hosting this agent's
	// workspace is reachable. A false value applies to the whole
	// workspace, not just this agent.
	WorkerOnline bool   `json:"worker_online"`
	GitStatus    string `json:"git_status,omitempty"`
}

// AgentCursor names one agent in a subscription together with the
// client's current tail sequence number. The hub replays only events
// after AfterSeq (bounded by its replay window).
type AgentCursor struct {
	AgentID  string `json:"agent_id"`
	AfterSeq int64  `json:"after_seq"`
}

// TerminalCursor names one terminal in a subscription.
type TerminalCursor struct {
	TerminalID string `json:"terminal_id"`
}

// SubscribeRequest opens one multiplexed event stream scoped to the
// given agents and terminals. Sent once per connection attempt.
type SubscribeRequest struct {
	OrgID       string           `json:"org_id"`
	WorkspaceID string           `json:"workspace_id"`
	Agents      []AgentCursor    `json:"agents,omitempty"`
	Terminals   []TerminalCursor `json:"terminals,omitempty"`
}

// HistoryRequest fetches one page of an agent's message history.
// At most one of BeforeSeq / AfterSeq is set (zero means unset):
// BeforeSeq returns the nearest-older page excluding the given seq,
// AfterSeq the nearest-newer page. With neither set the hub returns
// the most recent page.
type HistoryRequest struct {
	AgentID   string `json:"agent_id"`
	Limit     int    `json:"limit"`
	BeforeSeq int64  `json:"before_seq,omitempty"`
	AfterSeq  int64  `json:"after_seq,omitempty"`
}

// HistoryPage is one page of message history. HasMore reports whether
// further pages exist in the direction of the request's cursor.
type HistoryPage struct {
	Messages []ChatMessage `json:"messages"`
	HasMore  bool          `json:"has_more"`
}

// ControlPayload is the opaque JSON body of a control request. The
// engine stores and forwards it; only the approval UI interprets it.
type ControlPayload = json.RawMessage
