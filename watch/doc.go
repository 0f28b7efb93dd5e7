// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch owns the live side of workspace synchronization: one
// cancellable multiplexed subscription per workspace, driven by what
// the UI currently displays.
//
// [ResolveTargets] computes the minimal set of agents and terminals
// that must be live-watched from the UI's focused tabs. The resulting
// [Target] has a canonical key; [Watcher.SetTarget] restarts the
// subscription only when the key changes, so fine-grained UI
// re-renders never cause needless reconnects.
//
// [Watcher] runs the connection state machine. Each attempt
// back-fills newly watched agents' logs (best effort, in parallel),
// subscribes from every agent's current tail sequence, closes any
// replay gap with a forward history walk, then dispatches events to
// the chatlog and control stores and the terminal sink. Stream
// failure triggers reconnection with exponential backoff (1s floor
// doubling to a 30s cap, reset to the floor whenever an event
// arrives).
//
// Immediately after a (re)connect each agent passes through a
// catch-up phase sequence — messages, control requests, live — driven
// by the replay the hub sends. Side effects that must not fire for
// history (the turn-completion chime, unread-tab flags, approval
// prompts) are gated to the live phase, so a reconnect can never
// replay a chime for a turn the user already saw.
//
// The watcher owns its chatlog and control stores, constructed per
// instance: multiple workspaces (or tests) never share registries.
package watch
