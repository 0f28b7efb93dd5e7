// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapmux/leapmux-go/lib/msgcodec"
	"github.com/leapmux/leapmux-go/watch"
	"github.com/leapmux/leapmux-go/wire"
)

// Store change notifications delivered through the bubbletea loop.
type chatChangedMsg struct{ agentID string }
type controlChangedMsg struct{ agentID string }

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	approvalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("7")).Padding(0, 1)
)

// model is the viewer's bubbletea model: one tab per followed agent,
// a transcript viewport, and a status bar fed by the watcher's stores.
type model struct {
	watcher  *watch.Watcher
	agentIDs []string
	selected int

	events chan tea.Msg

	viewport viewport.Model
	spinner  spinner.Model
	ready    bool
	width    int
	height   int

	// follow pins the viewport to the bottom until the user scrolls up.
	follow bool
}

func newModel(watcher *watch.Watcher, agentIDs []string, events chan tea.Msg) model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	return model{
		watcher:  watcher,
		agentIDs: agentIDs,
		events:   events,
		spinner:  s,
		follow:   true,
	}
}

func (m model) selectedAgent() string {
	if len(m.agentIDs) == 0 {
		return ""
	}
	return m.agentIDs[m.selected]
}

func (m model) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := 1
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			if len(m.agentIDs) > 1 {
				m.selected = (m.selected + 1) % len(m.agentIDs)
				m.watcher.SetFocusedAgent(m.selectedAgent())
				m.follow = true
				m.refreshTranscript()
			}
			return m, nil
		case "shift+tab", "left", "h":
			if len(m.agentIDs) > 1 {
				m.selected = (m.selected + len(m.agentIDs) - 1) % len(m.agentIDs)
				m.watcher.SetFocusedAgent(m.selectedAgent())
				m.follow = true
				m.refreshTranscript()
			}
			return m, nil
		case "g":
			m.viewport.GotoTop()
			m.follow = false
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			m.follow = true
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case chatChangedMsg:
		if msg.agentID == m.selectedAgent() {
			m.refreshTranscript()
		}
		return m, m.waitForEvent()

	case controlChangedMsg:
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refreshTranscript re-renders the selected agent's transcript into
// the viewport, keeping the bottom pinned while following.
func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *model) renderTranscript() string {
	agentID := m.selectedAgent()
	if agentID == "" {
		return dimStyle.Render("no agents followed")
	}
	chat := m.watcher.Chat()

	var b strings.Builder
	if chat.HasMoreOlder(agentID) {
		b.WriteString(dimStyle.Render("(older history not shown)"))
		b.WriteString("\n\n")
	}
	for _, message := range chat.Messages(agentID) {
		m.renderMessage(&b, agentID, message)
	}
	if streaming := chat.StreamingText(agentID); streaming != "" {
		b.WriteString(assistantStyle.Render("assistant"))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render("(typing)"))
		b.WriteString("\n")
		b.WriteString(streaming)
		b.WriteString("\n")
	}
	if todos := chat.Todos(agentID); len(todos) > 0 {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("tasks"))
		b.WriteString("\n")
		for _, todo := range todos {
			marker := "[ ]"
			switch todo.Status {
			case "completed":
				marker = "[x]"
			case "in_progress":
				marker = "[>]"
			}
			fmt.Fprintf(&b, "  %s %s\n", marker, todo.Content)
		}
	}
	return b.String()
}

func (m *model) renderMessage(b *strings.Builder, agentID string, message wire.ChatMessage) {
	decoded := msgcodec.Decode(message.Content, message.ContentCompression)

	style := dimStyle
	switch message.Role {
	case wire.RoleUser:
		style = userStyle
	case wire.RoleAssistant:
		style = assistantStyle
	case wire.RoleNotification:
		style = noticeStyle
	}

	wrote := false
	if text := msgcodec.Text(decoded.Parent); text != "" {
		b.WriteString(style.Render(string(message.Role)))
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")
		wrote = true
	}
	for _, use := range decoded.ToolUses() {
		fmt.Fprintf(b, "%s %s\n", dimStyle.Render("tool:"), use.Name)
		wrote = true
	}
	if deliveryError := m.watcher.Chat().MessageError(agentID, message.ID); deliveryError != "" {
		b.WriteString(errorStyle.Render("delivery failed: " + deliveryError))
		b.WriteString("\n")
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.statusView()
}

func (m model) headerView() string {
	var tabs []string
	for i, agentID := range m.agentIDs {
		style := tabStyle
		if i == m.selected {
			style = activeTabStyle
		}
		label := agentID
		if pending := len(m.watcher.Control().Pending(agentID)); pending > 0 {
			label = fmt.Sprintf("%s (%d!)", agentID, pending)
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) statusView() string {
	agentID := m.selectedAgent()
	parts := []string{agentID}

	if status, ok := m.watcher.AgentStatus(agentID); ok {
		parts = append(parts, status.Status)
		if status.Model != "" {
			parts = append(parts, status.Model)
		}
		if !status.WorkerOnline {
			parts = append(parts, errorStyle.Render("worker offline"))
		}
	}
	if m.watcher.Chat().StreamingText(agentID) != "" {
		parts = append(parts, m.spinner.View()+" streaming")
	}
	if pending := len(m.watcher.Control().Pending(agentID)); pending > 0 {
		parts = append(parts, approvalStyle.Render(fmt.Sprintf("%d approval(s) waiting", pending)))
	}

	bar := statusBarStyle.Width(m.width).Render(strings.Join(parts, " · "))
	help := dimStyle.Render("tab: switch agent  ↑/↓: scroll  G: follow  q: quit")
	return bar + "\n" + help
}
