// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport connects the synchronization engine to a real
// Leapmux hub: a WebSocket [Dialer] implementing [wire.StreamOpener]
// and an HTTP [HistoryClient] implementing [wire.HistoryClient].
//
// The dialer opens one WebSocket per subscription, sends the
// subscribe request as the first frame, and decodes every subsequent
// frame as a [wire.Event]. The history client issues paged GET
// requests against the hub's message history endpoint. Both attach
// the caller's bearer token and translate structured hub error
// responses into [wire.HubError].
package transport
