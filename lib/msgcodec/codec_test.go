// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package msgcodec

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressZstd compresses data with zstd for test fixtures.
func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("creating zstd encoder: %v", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil)
}

// compressLZ4 compresses data in the lz4 frame format for test fixtures.
func compressLZ4(t *testing.T, data []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("lz4 write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("lz4 close: %v", err)
	}
	return buffer.Bytes()
}

func TestDecompress(t *testing.T) {
	payload := []byte(`{"content":"hello"}`)

	t.Run("none", func(t *testing.T) {
		out, err := Decompress(payload, CompressionNone)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("got %q, want %q", out, payload)
		}
	})

	t.Run("empty tag means raw", func(t *testing.T) {
		out, err := Decompress(payload, "")
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("got %q, want %q", out, payload)
		}
	})

	t.Run("zstd", func(t *testing.T) {
		out, err := Decompress(compressZstd(t, payload), CompressionZstd)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("got %q, want %q", out, payload)
		}
	})

	t.Run("lz4", func(t *testing.T) {
		out, err := Decompress(compressLZ4(t, payload), CompressionLZ4)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("got %q, want %q", out, payload)
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		if _, err := Decompress(payload, "brotli"); err == nil {
			t.Fatal("expected error for unknown compression tag")
		}
	})

	t.Run("corrupt zstd", func(t *testing.T) {
		if _, err := Decompress([]byte("not zstd"), CompressionZstd); err == nil {
			t.Fatal("expected error for corrupt zstd data")
		}
	})
}

func TestDecode(t *testing.T) {
	t.Run("decompression failure yields zero value", func(t *testing.T) {
		decoded := Decode([]byte("garbage"), CompressionZstd)
		if decoded.RawText != "" || decoded.TopLevel != nil || decoded.Parent != nil {
			t.Fatalf("expected zero Decoded, got %+v", decoded)
		}
	})

	t.Run("non-JSON preserves raw text", func(t *testing.T) {
		decoded := Decode([]byte("plain diagnostic output"), CompressionNone)
		if decoded.RawText != "plain diagnostic output" {
			t.Fatalf("RawText = %q", decoded.RawText)
		}
		if decoded.TopLevel != nil {
			t.Fatal("TopLevel should be nil on parse failure")
		}
		if decoded.Parent != nil {
			t.Fatal("Parent should be nil on parse failure")
		}
	})

	t.Run("single object", func(t *testing.T) {
		decoded := Decode([]byte(`{"content":"hi","type":"user"}`), CompressionNone)
		if decoded.IsWrapped {
			t.Fatal("single object should not be wrapped")
		}
		if decoded.Parent == nil || decoded.Parent["content"] != "hi" {
			t.Fatalf("Parent = %+v", decoded.Parent)
		}
	})

	t.Run("non-object top level", func(t *testing.T) {
		decoded := Decode([]byte(`[1,2,3]`), CompressionNone)
		if decoded.TopLevel == nil {
			t.Fatal("TopLevel should be set for valid JSON")
		}
		if decoded.Parent != nil {
			t.Fatal("Parent should be nil for a non-object top level")
		}
	})

	t.Run("thread wrapper", func(t *testing.T) {
		payload := []byte(`{"messages":[{"id":"m1"},{"id":"m2"},{"id":"m3"}]}`)
		decoded := Decode(payload, CompressionNone)
		if !decoded.IsWrapped {
			t.Fatal("expected wrapped payload")
		}
		if decoded.Parent == nil || decoded.Parent["id"] != "m1" {
			t.Fatalf("Parent = %+v", decoded.Parent)
		}
		if len(decoded.Children) != 2 {
			t.Fatalf("Children = %+v", decoded.Children)
		}
		if decoded.Wrapper == nil {
			t.Fatal("Wrapper should be the enclosing object")
		}
	})

	t.Run("empty wrapper is hidden not error", func(t *testing.T) {
		decoded := Decode([]byte(`{"messages":[]}`), CompressionNone)
		if !decoded.IsWrapped {
			t.Fatal("expected wrapped payload")
		}
		if decoded.Parent != nil {
			t.Fatal("Parent should be nil for an empty messages array")
		}
	})

	t.Run("compressed wrapper round trip", func(t *testing.T) {
		payload := compressZstd(t, []byte(`{"messages":[{"id":"m1"}]}`))
		decoded := Decode(payload, CompressionZstd)
		if !decoded.IsWrapped || decoded.Parent == nil {
			t.Fatalf("decoded = %+v", decoded)
		}
	})
}

func TestText(t *testing.T) {
	t.Run("plain content string", func(t *testing.T) {
		decoded := Decode([]byte(`{"content":"hello there"}`), CompressionNone)
		if got := Text(decoded.Parent); got != "hello there" {
			t.Fatalf("Text = %q", got)
		}
	})

	t.Run("nested text blocks", func(t *testing.T) {
		payload := []byte(`{"message":{"content":[{"type":"text","text":"a"},{"type":"tool_use","name":"Bash"},{"type":"text","text":"b"}]}}`)
		decoded := Decode(payload, CompressionNone)
		if got := Text(decoded.Parent); got != "a\nb" {
			t.Fatalf("Text = %q", got)
		}
	})

	t.Run("nil object", func(t *testing.T) {
		if got := Text(nil); got != "" {
			t.Fatalf("Text(nil) = %q", got)
		}
	})
}

func TestToolUses(t *testing.T) {
	payload := []byte(`{"messages":[
		{"message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}},
		{"message":{"content":[{"type":"text","text":"done"},{"type":"tool_use","name":"TodoWrite","input":{"todos":[]}}]}}
	]}`)
	decoded := Decode(payload, CompressionNone)
	uses := decoded.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("got %d tool uses, want 2", len(uses))
	}
	if uses[0].Name != "Bash" || uses[1].Name != "TodoWrite" {
		t.Fatalf("uses = %+v", uses)
	}
	if uses[0].Input["command"] != "ls" {
		t.Fatalf("input = %+v", uses[0].Input)
	}

	t.Run("malformed payload yields nil", func(t *testing.T) {
		decoded := Decode([]byte("not json"), CompressionNone)
		if uses := decoded.ToolUses(); uses != nil {
			t.Fatalf("expected nil, got %+v", uses)
		}
	})
}

func TestNotificationType(t *testing.T) {
	decoded := Decode([]byte(`{"type":"context_usage","used_tokens":1200}`), CompressionNone)
	if got := decoded.NotificationType(); got != "context_usage" {
		t.Fatalf("NotificationType = %q", got)
	}
	if got := (Decoded{}).NotificationType(); got != "" {
		t.Fatalf("zero value NotificationType = %q", got)
	}
}
