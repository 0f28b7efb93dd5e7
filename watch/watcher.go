// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapmux/leapmux-go/chatlog"
	"github.com/leapmux/leapmux-go/control"
	"github.com/leapmux/leapmux-go/wire"
)

// Reconnect backoff bounds. The delay starts at the floor, doubles on
// each consecutive failure, caps at the ceiling, and snaps back to
// the floor whenever the stream delivers an event.
const (
	DefaultBackoffFloor = 1 * time.Second
	DefaultBackoffCap   = 30 * time.Second
)

// DefaultMaxWindow caps the in-memory message window per agent. Live
// delivery trims oldest-first past the cap; the trimmed range stays
// reachable through LoadOlder.
const DefaultMaxWindow = 500

// errMissingToken aborts a connection attempt when no credentials are
// available. Not surfaced to callers: re-authentication is prompted
// elsewhere, the watcher just keeps retrying quietly.
var errMissingToken = errors.New("watch: no auth token available")

// Config assembles a Watcher's collaborators. Opener, History, and
// Tokens are required; the rest default to no-ops.
type Config struct {
	Opener    wire.StreamOpener
	History   wire.HistoryClient
	Tokens    wire.TokenSource
	Terminals TerminalSink
	Notifier  Notifier
	Logger    *slog.Logger

	// PageSize is the history page size, DefaultPageSize when zero.
	PageSize int
	// MaxWindow caps each agent's in-memory message window,
	// DefaultMaxWindow when zero. Negative disables trimming.
	MaxWindow int
	// ResolvedCapacity bounds the control store's resolved memory,
	// control.DefaultResolvedCapacity when zero.
	ResolvedCapacity int

	// BackoffFloor and BackoffCap override the reconnect delay bounds
	// when positive.
	BackoffFloor time.Duration
	BackoffCap   time.Duration
}

// Watcher maintains one multiplexed event subscription per workspace
// and reconciles everything it delivers into the stores it owns.
//
// A Watcher is created idle. SetTarget (or SetView) starts the
// connection loop for a target set and restarts it whenever the
// target's canonical key changes. Close tears the loop down
// synchronously.
type Watcher struct {
	opener    wire.StreamOpener
	tokens    wire.TokenSource
	chat      *chatlog.Store
	control   *control.Store
	terminals TerminalSink
	notifier  Notifier
	logger    *slog.Logger

	backoffFloor time.Duration
	backoffCap   time.Duration
	maxWindow    int
	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu              sync.Mutex
	closed          bool
	target          Target
	targetKey       string
	cancel          context.CancelFunc
	phases          map[string]Phase
	meta            map[string]wire.AgentStatus
	focusedAgent    string
	exitedTerminals map[string]bool
}

// New creates an idle Watcher.
func New(config Config) (*Watcher, error) {
	if config.Opener == nil {
		return nil, fmt.Errorf("watch: Config.Opener is required")
	}
	if config.History == nil {
		return nil, fmt.Errorf("watch: Config.History is required")
	}
	if config.Tokens == nil {
		return nil, fmt.Errorf("watch: Config.Tokens is required")
	}
	if config.Terminals == nil {
		config.Terminals = NopTerminalSink{}
	}
	if config.Notifier == nil {
		config.Notifier = NopNotifier{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BackoffFloor <= 0 {
		config.BackoffFloor = DefaultBackoffFloor
	}
	if config.BackoffCap <= 0 {
		config.BackoffCap = DefaultBackoffCap
	}
	if config.MaxWindow == 0 {
		config.MaxWindow = DefaultMaxWindow
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Watcher{
		opener:          config.Opener,
		tokens:          config.Tokens,
		chat:            chatlog.NewStore(config.History, config.PageSize),
		control:         control.NewStore(config.ResolvedCapacity),
		terminals:       config.Terminals,
		notifier:        config.Notifier,
		logger:          config.Logger,
		backoffFloor:    config.BackoffFloor,
		backoffCap:      config.BackoffCap,
		maxWindow:       config.MaxWindow,
		sleep:           sleepContext,
		baseCtx:         baseCtx,
		baseCancel:      baseCancel,
		phases:          make(map[string]Phase),
		meta:            make(map[string]wire.AgentStatus),
		exitedTerminals: make(map[string]bool),
	}, nil
}

// Chat returns the message log store owned by this watcher.
func (w *Watcher) Chat() *chatlog.Store { return w.chat }

// Control returns the pending-approval store owned by this watcher.
func (w *Watcher) Control() *control.Store { return w.control }

// AgentStatus returns the latest status metadata seen for an agent.
func (w *Watcher) AgentStatus(agentID string) (wire.AgentStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	status, ok := w.meta[agentID]
	return status, ok
}

// TerminalExited reports whether a terminal has been marked exited.
func (w *Watcher) TerminalExited(terminalID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exitedTerminals[terminalID]
}

// SetView resolves the UI state to a target set, updates the focused
// agent, and restarts the subscription if the target changed.
func (w *Watcher) SetView(view ViewState) {
	focused := ""
	if view.Focused != nil && view.Focused.Type == TabAgent {
		focused = view.Focused.AgentID
	}
	w.SetFocusedAgent(focused)
	w.SetTarget(ResolveTargets(view))
}

// SetFocusedAgent records the globally focused agent tab (empty when
// a terminal or nothing is focused). A focused agent outside the live
// target set that has never been loaded gets a one-shot history
// fetch, without joining the subscription.
func (w *Watcher) SetFocusedAgent(agentID string) {
	w.mu.Lock()
	w.focusedAgent = agentID
	w.mu.Unlock()
	w.maybeLazyFetch()
}

// FocusedAgent returns the globally focused agent tab id.
func (w *Watcher) FocusedAgent() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusedAgent
}

// SetTarget restarts the connection loop for a new target set. A
// target whose canonical key equals the current one is a no-op — this
// is what keeps repeated UI re-renders from churning the connection.
func (w *Watcher) SetTarget(target Target) {
	key := target.Key()
	w.mu.Lock()
	if w.closed || key == w.targetKey {
		w.mu.Unlock()
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	runCtx, cancel := context.WithCancel(w.baseCtx)
	w.cancel = cancel
	w.target = target
	w.targetKey = key
	if !target.IsEmpty() {
		w.wg.Add(1)
		go w.run(runCtx, target)
	}
	w.mu.Unlock()
}

// Close stops the connection loop and waits for it to finish. No
// state mutation happens after Close returns. Idempotent.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	w.baseCancel()
	w.mu.Unlock()
	w.wg.Wait()
}

// run is the reconnect loop for one target set. It exits only on
// cancellation.
func (w *Watcher) run(ctx context.Context, target Target) {
	defer w.wg.Done()
	backoff := w.backoffFloor
	for {
		received, err := w.attempt(ctx, target)
		if ctx.Err() != nil {
			return
		}
		if received {
			backoff = w.backoffFloor
		}
		switch {
		case errors.Is(err, errMissingToken):
			w.logger.Debug("skipping connection attempt, no auth token",
				"workspace_id", target.WorkspaceID)
		case err != nil:
			w.logger.Warn("event stream failed, reconnecting",
				"workspace_id", target.WorkspaceID,
				"backoff", backoff,
				"error", err,
			)
		}
		if err := w.sleep(ctx, backoff); err != nil {
			return
		}
		backoff *= 2
		if backoff > w.backoffCap {
			backoff = w.backoffCap
		}
	}
}

// attempt performs one full connection cycle: reset catch-up state,
// back-fill, subscribe, and dispatch until the stream errors or ctx
// is cancelled. Returns whether any event was received (resets the
// backoff) and the terminating error.
func (w *Watcher) attempt(ctx context.Context, target Target) (bool, error) {
	// Every targeted agent restarts catch-up at the messages phase,
	// and stale pending approvals are dropped before the replay
	// repopulates them. The control store's resolved memory survives.
	w.mu.Lock()
	w.phases = make(map[string]Phase, len(target.AgentIDs))
	w.mu.Unlock()
	w.control.ClearAll()

	if w.tokens.Token() == "" {
		return false, errMissingToken
	}

	// Back-fill newly watched agents in parallel. Best effort: the
	// live feed still delivers history via catch-up if a fetch fails.
	var loads sync.WaitGroup
	for _, agentID := range target.AgentIDs {
		loads.Add(1)
		go func(agentID string) {
			defer loads.Done()
			if err := w.chat.LoadInitial(ctx, agentID); err != nil && ctx.Err() == nil {
				w.logger.Warn("initial history load failed",
					"agent_id", agentID, "error", err)
			}
		}(agentID)
	}
	loads.Wait()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	request := wire.SubscribeRequest{
		OrgID:       target.OrgID,
		WorkspaceID: target.WorkspaceID,
	}
	for _, agentID := range target.AgentIDs {
		request.Agents = append(request.Agents, wire.AgentCursor{
			AgentID:  agentID,
			AfterSeq: w.chat.TailSeq(agentID),
		})
	}
	for _, terminalID := range target.TerminalIDs {
		request.Terminals = append(request.Terminals, wire.TerminalCursor{
			TerminalID: terminalID,
		})
	}

	stream, err := w.opener.OpenStream(ctx, request)
	if err != nil {
		return false, fmt.Errorf("watch: open stream: %w", err)
	}
	defer stream.Close()

	// The hub's live replay window is bounded. Walk history forward
	// from each agent's tail to close any remaining gap; AddMessage
	// absorbs the overlap with the replay.
	for _, cursor := range request.Agents {
		if cursor.AfterSeq == 0 {
			continue
		}
		w.wg.Add(1)
		go func(agentID string, afterSeq int64) {
			defer w.wg.Done()
			if err := w.chat.LoadNewer(ctx, agentID, afterSeq); err != nil && ctx.Err() == nil {
				w.logger.Warn("gap fill failed",
					"agent_id", agentID, "after_seq", afterSeq, "error", err)
			}
		}(cursor.AgentID, cursor.AfterSeq)
	}

	w.maybeLazyFetch()

	received := false
	for {
		event, err := stream.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return received, ctx.Err()
			}
			return received, fmt.Errorf("watch: stream receive: %w", err)
		}
		received = true
		w.dispatch(target, event)
	}
}

// maybeLazyFetch loads history once for a focused agent that is not
// in the live target set (a background tile owns the live slot) and
// has never been loaded.
func (w *Watcher) maybeLazyFetch() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	focused := w.focusedAgent
	target := w.target
	w.mu.Unlock()

	if focused == "" {
		return
	}
	for _, agentID := range target.AgentIDs {
		if agentID == focused {
			return
		}
	}
	if w.chat.InitialLoadComplete(focused) {
		return
	}
	// Re-check closed under the lock so the goroutine is never added
	// after Close has begun waiting.
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.wg.Done()
		if err := w.chat.LoadInitial(w.baseCtx, focused); err != nil && w.baseCtx.Err() == nil {
			w.logger.Debug("lazy history load failed",
				"agent_id", focused, "error", err)
		}
	}()
}

// sleepContext waits d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
