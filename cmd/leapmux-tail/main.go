// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// leapmux-tail follows one Leapmux workspace from the command line:
// agent chat turns print as they arrive, terminal output streams to
// stdout, and approval requests are announced on stderr. Useful for
// keeping an eye on a background agent without opening the full TUI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/leapmux/leapmux-go/chatlog"
	"github.com/leapmux/leapmux-go/lib/config"
	"github.com/leapmux/leapmux-go/lib/msgcodec"
	"github.com/leapmux/leapmux-go/lib/version"
	"github.com/leapmux/leapmux-go/transport"
	"github.com/leapmux/leapmux-go/watch"
	"github.com/leapmux/leapmux-go/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var orgID, workspaceID string
	var agentIDs, terminalIDs []string
	var noColor bool
	var logLevel string

	flagSet := pflag.NewFlagSet("leapmux-tail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to leapmux.yaml (default: $LEAPMUX_CONFIG)")
	flagSet.StringVar(&orgID, "org", "", "org id (default: workspace.org_id from config)")
	flagSet.StringVar(&workspaceID, "workspace", "", "workspace id (default: workspace.workspace_id from config)")
	flagSet.StringSliceVar(&agentIDs, "agent", nil, "agent id to follow (repeatable)")
	flagSet.StringSliceVar(&terminalIDs, "terminal", nil, "terminal id to follow (repeatable)")
	flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("leapmux-tail")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if orgID == "" {
		orgID = cfg.Workspace.OrgID
	}
	if workspaceID == "" {
		workspaceID = cfg.Workspace.WorkspaceID
	}
	if workspaceID == "" {
		return fmt.Errorf("no workspace selected; pass --workspace or set workspace.workspace_id in the config")
	}
	if len(agentIDs) == 0 && len(terminalIDs) == 0 {
		return fmt.Errorf("nothing to follow; pass at least one --agent or --terminal")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))

	tokens := cfg.TokenSource()
	dialer, err := transport.NewDialer(transport.DialerConfig{
		BaseURL:          cfg.Hub.URL,
		Tokens:           tokens,
		HandshakeTimeout: config.Duration(cfg.Hub.HandshakeTimeout, 0),
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	history, err := transport.NewHistoryClient(transport.HistoryConfig{
		BaseURL: cfg.Hub.URL,
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	printer := newPrinter(os.Stdout, !noColor && term.IsTerminal(int(os.Stdout.Fd())))

	watcher, err := watch.New(watch.Config{
		Opener:       dialer,
		History:      history,
		Tokens:       tokens,
		Terminals:    printer,
		Notifier:     printer,
		Logger:       logger,
		PageSize:     cfg.Sync.PageSize,
		BackoffFloor: config.Duration(cfg.Sync.BackoffFloor, 0),
		BackoffCap:   config.Duration(cfg.Sync.BackoffCap, 0),
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	unsubscribe := watcher.Chat().Subscribe(func(agentID string) {
		printer.agentChanged(watcher.Chat(), agentID)
	})
	defer unsubscribe()

	target := watch.Target{OrgID: orgID, WorkspaceID: workspaceID}
	target.AgentIDs = append(target.AgentIDs, agentIDs...)
	target.TerminalIDs = append(target.TerminalIDs, terminalIDs...)
	watcher.SetTarget(target)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// printer renders chat turns and terminal bytes to a single writer.
// It implements both watch.TerminalSink and watch.Notifier.
type printer struct {
	mu      sync.Mutex
	out     *os.File
	color   bool
	printed map[string]int64

	userStyle      lipgloss.Style
	assistantStyle lipgloss.Style
	resultStyle    lipgloss.Style
	noticeStyle    lipgloss.Style
	toolStyle      lipgloss.Style
}

func newPrinter(out *os.File, color bool) *printer {
	return &printer{
		out:            out,
		color:          color,
		printed:        make(map[string]int64),
		userStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		assistantStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		resultStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		noticeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		toolStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

// agentChanged prints every message past the last printed sequence.
func (p *printer) agentChanged(chat *chatlog.Store, agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, message := range chat.Messages(agentID) {
		if message.Seq <= p.printed[agentID] {
			continue
		}
		p.printed[agentID] = message.Seq
		p.printMessageLocked(agentID, message)
	}
}

func (p *printer) printMessageLocked(agentID string, message wire.ChatMessage) {
	decoded := msgcodec.Decode(message.Content, message.ContentCompression)

	label := string(message.Role)
	style := p.resultStyle
	switch message.Role {
	case wire.RoleUser:
		style = p.userStyle
	case wire.RoleAssistant:
		style = p.assistantStyle
	case wire.RoleNotification:
		style = p.noticeStyle
	}

	if text := msgcodec.Text(decoded.Parent); text != "" {
		fmt.Fprintf(p.out, "%s %s\n", p.render(style, "["+agentID+" "+label+"]"), text)
	}
	for _, use := range decoded.ToolUses() {
		fmt.Fprintf(p.out, "%s %s\n", p.render(p.toolStyle, "["+agentID+" tool]"), use.Name)
	}
}

// Write implements watch.TerminalSink.
func (p *printer) Write(terminalID string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.Write(data)
}

// Closed implements watch.TerminalSink.
func (p *printer) Closed(terminalID string) {
	p.notice("terminal %s closed", terminalID)
}

func (p *printer) TurnCompleted(agentID string) {
	p.notice("agent %s finished a turn", agentID)
}

func (p *printer) Unread(agentID string) {}

func (p *printer) ControlRequested(agentID string) {
	p.notice("agent %s is waiting for approval", agentID)
}

func (p *printer) ContextUsage(agentID string, usage map[string]any) {}

func (p *printer) AgentRemoved(agentID string) {
	p.notice("agent %s removed", agentID)
}

func (p *printer) notice(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", p.render(p.noticeStyle, fmt.Sprintf("-- "+format, args...)))
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Leapmux workspace tail — follow agents and terminals from the shell.

Connects to the hub named in the config file, subscribes to the given
agents and terminals, and prints chat turns and terminal output as
they arrive. Reconnects automatically with backoff.

Usage:
  leapmux-tail [flags]

Examples:
  # Follow one agent
  leapmux-tail --workspace ws-42 --agent agent-7

  # Follow an agent and a terminal with an explicit config
  leapmux-tail --config ./leapmux.yaml --workspace ws-42 --agent agent-7 --terminal term-3

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
