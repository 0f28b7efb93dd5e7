// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package control tracks the out-of-band approval requests pending
// for each agent.
//
// A control request arrives on the live stream, waits for the user's
// answer, and is destroyed by a matching cancel event or by the user
// responding. Because a reconnect replays recent traffic, the store
// keeps a bounded memory of recently resolved request ids and rejects
// re-insertion of anything it remembers resolving — a post-response
// replay must not resurrect an already-answered approval prompt.
//
// The resolved memory deliberately survives [Store.ClearAgent] and
// [Store.ClearAll]: those clear stale pending requests ahead of a
// reconnect's catch-up replay, and forgetting resolutions at exactly
// that moment would defeat the replay protection.
package control
