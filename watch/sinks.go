// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package watch

// TerminalSink receives terminal traffic from the multiplexed stream.
// The rendering side (xterm widget, raw stdout) lives behind this
// interface; the engine only routes bytes and lifecycle.
type TerminalSink interface {
	// Write delivers raw output bytes for a terminal.
	Write(terminalID string, data []byte)
	// Closed marks the terminal as exited. Implementations typically
	// print a connection-lost notice.
	Closed(terminalID string)
}

// Notifier receives the user-facing side effects of synchronization.
// TurnCompleted, Unread, and ControlRequested are gated to the live
// catch-up phase and never fire for replayed history. ContextUsage
// and AgentRemoved follow the data regardless of phase.
type Notifier interface {
	// TurnCompleted fires when a live turn finishes (completion chime).
	TurnCompleted(agentID string)
	// Unread flags a live turn finishing on an unfocused tab.
	Unread(agentID string)
	// ControlRequested fires when a live approval request arrives.
	ControlRequested(agentID string)
	// ContextUsage updates the context usage display from an
	// ephemeral notification; nil usage clears it.
	ContextUsage(agentID string, usage map[string]any)
	// AgentRemoved reports that an agent became inactive with no
	// session and no messages, and its tab should disappear.
	AgentRemoved(agentID string)
}

// NopTerminalSink discards terminal traffic.
type NopTerminalSink struct{}

func (NopTerminalSink) Write(string, []byte) {}
func (NopTerminalSink) Closed(string)        {}

// NopNotifier ignores all side effects.
type NopNotifier struct{}

func (NopNotifier) TurnCompleted(string)                {}
func (NopNotifier) Unread(string)                       {}
func (NopNotifier) ControlRequested(string)             {}
func (NopNotifier) ContextUsage(string, map[string]any) {}
func (NopNotifier) AgentRemoved(string)                 {}
