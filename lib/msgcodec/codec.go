// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package msgcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression tags used in ChatMessage.ContentCompression.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// zstdDecoder is the shared zstd decoder. Created without a reader so
// DecodeAll can be used concurrently from any goroutine.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("msgcodec: zstd decoder initialization failed: " + err.Error())
	}
}

// Decompress reverses the named compression tag. An empty tag or
// "none" returns a copy of data unchanged. Unknown tags are an error.
func Decompress(data []byte, compression string) ([]byte, error) {
	switch compression {
	case "", CompressionNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("msgcodec: zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("msgcodec: lz4 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("msgcodec: unknown compression tag %q", compression)
	}
}

// Decoded is the normalized shape of one message payload.
//
// Parse failures leave TopLevel nil and Parent nil while preserving
// RawText for diagnostic display. A wrapped thread with an empty
// "messages" array has IsWrapped true and Parent nil — the hidden
// no-op case.
type Decoded struct {
	// RawText is the decompressed payload as text, preserved even
	// when it does not parse as JSON.
	RawText string
	// TopLevel is the parsed JSON value, nil on parse failure.
	TopLevel any
	// IsWrapped reports the thread-wrapper shape (object with a
	// "messages" array).
	IsWrapped bool
	// Parent is the primary message object: the first wrapped entry,
	// or the top-level object itself when unwrapped.
	Parent map[string]any
	// Children are the remaining wrapped entries (merged thread
	// siblings). Nil when unwrapped.
	Children []map[string]any
	// Wrapper is the enclosing object when IsWrapped.
	Wrapper map[string]any
}

// Decode decompresses and interprets one message payload. It never
// fails: decompression errors yield the zero Decoded, parse errors
// yield a Decoded with only RawText set.
func Decode(content []byte, compression string) Decoded {
	raw, err := Decompress(content, compression)
	if err != nil {
		return Decoded{}
	}

	decoded := Decoded{RawText: string(raw)}

	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return decoded
	}
	decoded.TopLevel = top

	object, ok := top.(map[string]any)
	if !ok {
		return decoded
	}

	if wrapped, ok := object["messages"].([]any); ok {
		decoded.IsWrapped = true
		decoded.Wrapper = object
		if len(wrapped) == 0 {
			return decoded
		}
		if parent, ok := wrapped[0].(map[string]any); ok {
			decoded.Parent = parent
		}
		for _, child := range wrapped[1:] {
			if childObject, ok := child.(map[string]any); ok {
				decoded.Children = append(decoded.Children, childObject)
			}
		}
		return decoded
	}

	decoded.Parent = object
	return decoded
}
