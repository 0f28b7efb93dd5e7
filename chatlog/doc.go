// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatlog maintains the ordered, deduplicated, per-agent
// message logs that everything else in the client is allowed to
// assume are gap-free and monotonic.
//
// The wire feed is partially ordered: a reconnect replays entries the
// client already holds, a thread merge revises an existing message's
// sequence number in place, and backlog pages overlap live delivery.
// [Store.AddMessage] absorbs all of it with an explicit four-way
// dispatch (merge by id / append / dedup by seq / sorted insert) so
// that any interleaving of live dispatch, backlog fetch, and
// reconnect reset converges on the same log.
//
// Alongside the durable log the store holds transient per-agent
// state: the incrementally streamed in-progress response, pagination
// flags, per-message delivery errors, and the most recent structured
// task list re-derived from the visible window after every mutation.
//
// Observers registered with [Store.Subscribe] are notified
// synchronously after each mutation with the affected agent id.
package chatlog
