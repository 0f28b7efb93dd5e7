// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the types exchanged between a Leapmux client
// and the hub's multiplexed workspace event channel, plus the narrow
// interfaces through which the synchronization engine reaches its
// collaborators.
//
// One subscription carries the traffic for every watched agent and
// terminal in a workspace. The client declares its position with a
// [SubscribeRequest] (per-agent tail sequence numbers, terminal ids)
// and the hub replays what the client is missing before switching to
// live delivery. Events arrive as [Event] envelopes discriminated by
// [EventType]; each variant populates a subset of the envelope fields
// (documented per constant).
//
// Message history is fetched out of band through [HistoryClient], a
// paginated request/response API keyed by per-agent sequence numbers.
// Exactly one of HistoryRequest.BeforeSeq / AfterSeq is set per call;
// with neither set the hub returns the most recent page.
//
// Hub errors carry a structured code. Use [IsHubError] to test for a
// specific code:
//
//	if wire.IsHubError(err, wire.ErrCodeUnauthenticated) { ... }
//
// This package depends on no other Leapmux packages.
package wire
