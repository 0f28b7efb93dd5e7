// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// leapmux-viewer is an interactive terminal UI for following Leapmux
// agents: live transcript with streaming text, structured task list,
// agent status, and pending approval indicators, one tab per agent.
package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/leapmux/leapmux-go/lib/config"
	"github.com/leapmux/leapmux-go/lib/version"
	"github.com/leapmux/leapmux-go/transport"
	"github.com/leapmux/leapmux-go/watch"
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
	var agentIDs []string
	var logOutput string

	flagSet := pflag.NewFlagSet("leapmux-viewer", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to leapmux.yaml (default: $LEAPMUX_CONFIG)")
	flagSet.StringVar(&orgID, "org", "", "org id (default: workspace.org_id from config)")
	flagSet.StringVar(&workspaceID, "workspace", "", "workspace id (default: workspace.workspace_id from config)")
	flagSet.StringSliceVar(&agentIDs, "agent", nil, "agent id to follow (repeatable)")
	flagSet.StringVar(&logOutput, "log-output", "", "write log records to this file instead of discarding them")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("leapmux-viewer")
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

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
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
	if len(agentIDs) == 0 {
		return fmt.Errorf("nothing to follow; pass at least one --agent")
	}

	// Logs cannot share the terminal with the TUI renderer.
	logger := slog.New(slog.DiscardHandler)
	if logOutput != "" {
		logFile, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log output: %w", err)
		}
		defer logFile.Close()
		logger = slog.New(slog.NewJSONHandler(logFile, nil))
	}

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

	watcher, err := watch.New(watch.Config{
		Opener:       dialer,
		History:      history,
		Tokens:       tokens,
		Logger:       logger,
		PageSize:     cfg.Sync.PageSize,
		BackoffFloor: config.Duration(cfg.Sync.BackoffFloor, 0),
		BackoffCap:   config.Duration(cfg.Sync.BackoffCap, 0),
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	events := make(chan tea.Msg, 64)
	unsubscribeChat := watcher.Chat().Subscribe(func(agentID string) {
		events <- chatChangedMsg{agentID: agentID}
	})
	defer unsubscribeChat()
	unsubscribeControl := watcher.Control().Subscribe(func(agentID string) {
		events <- controlChangedMsg{agentID: agentID}
	})
	defer unsubscribeControl()

	target := watch.Target{OrgID: orgID, WorkspaceID: workspaceID}
	target.AgentIDs = append(target.AgentIDs, agentIDs...)
	watcher.SetTarget(target)
	watcher.SetFocusedAgent(agentIDs[0])

	program := tea.NewProgram(newModel(watcher, agentIDs, events), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Leapmux agent viewer — interactive terminal UI for following agents.

Connects to the hub named in the config file and follows the given
agents: transcript with live streaming text, structured task list,
agent status, and pending approval indicators. One tab per agent.

Usage:
  leapmux-viewer [flags]

Examples:
  # Follow one agent
  leapmux-viewer --workspace ws-42 --agent agent-7

  # Follow two agents with an explicit config
  leapmux-viewer --config ./leapmux.yaml --workspace ws-42 --agent agent-7 --agent agent-9

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
