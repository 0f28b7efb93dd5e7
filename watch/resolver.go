// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"sort"
	"strings"
)

// TabType distinguishes the two kinds of workspace tab.
type TabType string

const (
	TabAgent    TabType = "agent"
	TabTerminal TabType = "terminal"
)

// Tab is the UI's view of one tab, reduced to what subscription
// resolution needs.
type Tab struct {
	Type TabType

	// AgentID and agent watchability. An agent tab is watchable while
	// the agent is active or still holds a live session.
	AgentID     string
	AgentActive bool
	SessionID   string

	// TerminalID and terminal watchability. A terminal tab is
	// watchable until the terminal exits.
	TerminalID     string
	TerminalExited bool
}

// watchable reports whether the tab needs a live subscription.
func (t Tab) watchable() bool {
	switch t.Type {
	case TabAgent:
		return t.AgentID != "" && (t.AgentActive || t.SessionID != "")
	case TabTerminal:
		return t.TerminalID != "" && !t.TerminalExited
	default:
		return false
	}
}

// ViewState is the UI input to subscription resolution: the single
// globally focused tab plus each tile's focused tab. ActiveAgents
// lists the workspace's currently active agent ids, used to
// synthesize a background agent subscription when only terminals are
// watched.
type ViewState struct {
	OrgID       string
	WorkspaceID string

	Focused     *Tab
	TileFocused []Tab

	ActiveAgents []string
}

// Target is the derived set of identifiers that must be live-watched.
// The id slices are sorted and duplicate-free.
type Target struct {
	OrgID       string
	WorkspaceID string
	AgentIDs    []string
	TerminalIDs []string
}

// Key returns the canonical identity of the target set. Two view
// states that watch the same identifiers produce equal keys, however
// they were arrived at — the watcher reconnects only on key change.
func (t Target) Key() string {
	var builder strings.Builder
	builder.WriteString(t.OrgID)
	builder.WriteByte('/')
	builder.WriteString(t.WorkspaceID)
	builder.WriteString("|agents:")
	builder.WriteString(strings.Join(t.AgentIDs, ","))
	builder.WriteString("|terminals:")
	builder.WriteString(strings.Join(t.TerminalIDs, ","))
	return builder.String()
}

// IsEmpty reports whether nothing needs watching.
func (t Target) IsEmpty() bool {
	return len(t.AgentIDs) == 0 && len(t.TerminalIDs) == 0
}

// ResolveTargets computes the live target set from the current view.
//
// Every watchable focused tab (global or per-tile) contributes its
// identifier. When the result watches at least one terminal but no
// agent, one background agent subscription is synthesized from the
// workspace's active agents: status and approval traffic for the
// acting agent must not be silently dropped just because no agent tab
// is focused.
func ResolveTargets(view ViewState) Target {
	agents := make(map[string]bool)
	terminals := make(map[string]bool)

	consider := func(tab Tab) {
		if !tab.watchable() {
			return
		}
		switch tab.Type {
		case TabAgent:
			agents[tab.AgentID] = true
		case TabTerminal:
			terminals[tab.TerminalID] = true
		}
	}

	if view.Focused != nil {
		consider(*view.Focused)
	}
	for _, tab := range view.TileFocused {
		consider(tab)
	}

	if len(agents) == 0 && len(terminals) > 0 && len(view.ActiveAgents) > 0 {
		background := append([]string(nil), view.ActiveAgents...)
		sort.Strings(background)
		agents[background[0]] = true
	}

	target := Target{OrgID: view.OrgID, WorkspaceID: view.WorkspaceID}
	for agentID := range agents {
		target.AgentIDs = append(target.AgentIDs, agentID)
	}
	for terminalID := range terminals {
		target.TerminalIDs = append(target.TerminalIDs, terminalID)
	}
	sort.Strings(target.AgentIDs)
	sort.Strings(target.TerminalIDs)
	return target
}
