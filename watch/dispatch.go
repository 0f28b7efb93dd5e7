// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"github.com/leapmux/leapmux-go/control"
	"github.com/leapmux/leapmux-go/lib/msgcodec"
	"github.com/leapmux/leapmux-go/wire"
)

// Phase is the per-agent catch-up position immediately after a
// (re)connect. The hub replays missed history first: messages, then
// the agent's status, then pending control requests, then live
// traffic. Side effects are gated to PhaseLive.
type Phase int

const (
	// PhaseMessages: the replay of missed messages is in progress.
	PhaseMessages Phase = iota
	// PhaseControlRequests: the status snapshot arrived; pending
	// control requests are being replayed.
	PhaseControlRequests
	// PhaseLive: replay is done, events represent new activity.
	PhaseLive
)

// Notification payload types routed outside the message log.
const (
	notifyContextUsage   = "context_usage"
	notifyContextCleared = "context_cleared"
)

// Agent status values referenced by the dispatcher.
const statusInactive = "inactive"

// advancePhase applies one event's type to an agent's catch-up phase
// and returns the phase the event is processed under. The first
// status change ends the message replay; the next event of any other
// type ends the control request replay.
func (w *Watcher) advancePhase(agentID string, eventType wire.EventType) Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	phase := w.phases[agentID]
	switch phase {
	case PhaseMessages:
		if eventType == wire.EventStatusChange {
			phase = PhaseControlRequests
		}
	case PhaseControlRequests:
		if eventType != wire.EventStatusChange {
			phase = PhaseLive
		}
	}
	w.phases[agentID] = phase
	return phase
}

// dispatch routes one event to the stores and sinks.
func (w *Watcher) dispatch(target Target, event wire.Event) {
	switch event.Type {
	case wire.EventTerminalData:
		w.terminals.Write(event.TerminalID, event.Data)
		return
	case wire.EventTerminalClosed:
		w.markTerminalExited(event.TerminalID)
		return
	}

	live := w.advancePhase(event.AgentID, event.Type) == PhaseLive

	switch event.Type {
	case wire.EventAgentMessage:
		if event.Message == nil {
			return
		}
		w.handleAgentMessage(event.AgentID, *event.Message)

	case wire.EventStreamChunk:
		w.chat.AppendStreamingText(event.AgentID, string(event.Delta))

	case wire.EventStreamEnd:
		w.chat.ClearStreamingText(event.AgentID)
		if live {
			w.notifier.TurnCompleted(event.AgentID)
			if event.AgentID != w.FocusedAgent() {
				w.notifier.Unread(event.AgentID)
			}
		}

	case wire.EventStatusChange:
		w.handleStatusChange(target, event)

	case wire.EventControlRequest:
		added := w.control.AddRequest(control.Request{
			AgentID:   event.AgentID,
			RequestID: event.RequestID,
			Payload:   event.Payload,
		})
		if added && live {
			w.notifier.ControlRequested(event.AgentID)
		}

	case wire.EventControlCancel:
		w.control.RemoveRequest(event.AgentID, event.RequestID)

	case wire.EventMessageError:
		w.chat.SetMessageError(event.AgentID, event.MessageID, event.Error)

	case wire.EventMessageDeleted:
		w.chat.DeleteMessage(event.AgentID, event.MessageID)

	default:
		w.logger.Debug("ignoring unknown event variant", "type", event.Type)
	}
}

// handleAgentMessage decodes a delivered message and routes it.
// Ephemeral context notifications update the usage display and never
// enter the log; a context-clear notification also drops the cached
// task list. Everything else merges into the log, superseding any
// in-progress streaming text.
func (w *Watcher) handleAgentMessage(agentID string, message wire.ChatMessage) {
	if message.Role == wire.RoleNotification {
		decoded := msgcodec.Decode(message.Content, message.ContentCompression)
		switch decoded.NotificationType() {
		case notifyContextUsage:
			w.notifier.ContextUsage(agentID, decoded.Parent)
			return
		case notifyContextCleared:
			w.chat.ClearTodos(agentID)
			w.notifier.ContextUsage(agentID, nil)
			return
		}
	}
	if message.Role == wire.RoleAssistant || message.Role == wire.RoleResult {
		w.chat.ClearStreamingText(agentID)
	}
	w.chat.AddMessage(agentID, message)
	w.chat.TrimOld(agentID, w.maxWindow)
}

// handleStatusChange records agent metadata and applies the two
// status-driven sweeps: the worker going offline idles every watched
// terminal and streaming buffer, and an inactive agent with no
// session and no messages is removed entirely.
func (w *Watcher) handleStatusChange(target Target, event wire.Event) {
	if event.Status == nil {
		return
	}
	status := *event.Status

	w.mu.Lock()
	w.meta[event.AgentID] = status
	w.mu.Unlock()

	if !status.WorkerOnline {
		w.workerOffline(target)
	}

	if status.Status == statusInactive && status.SessionID == "" &&
		w.chat.MessageCount(event.AgentID) == 0 {
		w.mu.Lock()
		delete(w.meta, event.AgentID)
		w.mu.Unlock()
		w.notifier.AgentRemoved(event.AgentID)
	}
}

// workerOffline marks every watched, non-exited terminal as exited
// and clears every watched agent's streaming buffer. Runs outside the
// normal per-terminal dispatch path: a dead worker produces no closed
// events for its terminals.
func (w *Watcher) workerOffline(target Target) {
	for _, terminalID := range target.TerminalIDs {
		w.markTerminalExited(terminalID)
	}
	for _, agentID := range target.AgentIDs {
		w.chat.ClearStreamingText(agentID)
	}
}

// markTerminalExited records the exit and notifies the sink once.
func (w *Watcher) markTerminalExited(terminalID string) {
	w.mu.Lock()
	if w.exitedTerminals[terminalID] {
		w.mu.Unlock()
		return
	}
	w.exitedTerminals[terminalID] = true
	w.mu.Unlock()
	w.terminals.Closed(terminalID)
}
