// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package msgcodec decodes the opaque payload of a chat message into
// a normalized shape shared by the log store and the viewers.
//
// Message content travels compressed: a byte slice plus a compression
// tag ("zstd", "lz4", or "none"/empty for raw). [Decompress] reverses
// the tag; [Decode] combines decompression with JSON interpretation
// and never fails — any decompression or parse error degrades to an
// empty [Decoded] (with RawText preserved when the bytes were
// recoverable) so callers render what they have instead of erroring.
//
// Two payload shapes exist on the wire:
//
//   - A thread wrapper: a JSON object with an array field "messages".
//     The first element is the parent turn, the rest are its merged
//     children. An empty array is the hidden/no-op case, not an error.
//   - A single object: the object itself is the parent.
//
// Decode is pure. It serves both live event handling and backlog
// re-scans (re-deriving the latest task list from history).
package msgcodec
