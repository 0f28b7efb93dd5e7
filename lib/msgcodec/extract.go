// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package msgcodec

import "strings"

// ToolUse is one tool invocation block extracted from a message object.
type ToolUse struct {
	Name  string
	Input map[string]any
}

// contentBlocks returns the content of a message object in block form.
// Agent payloads nest blocks under message.content; user payloads
// carry a plain "content" string. A bare string becomes a single text
// block so callers handle one shape.
func contentBlocks(object map[string]any) []map[string]any {
	content := object["content"]
	if inner, ok := object["message"].(map[string]any); ok {
		content = inner["content"]
	}
	switch value := content.(type) {
	case string:
		return []map[string]any{{"type": "text", "text": value}}
	case []any:
		blocks := make([]map[string]any, 0, len(value))
		for _, entry := range value {
			if block, ok := entry.(map[string]any); ok {
				blocks = append(blocks, block)
			}
		}
		return blocks
	default:
		return nil
	}
}

// Text returns the concatenated text blocks of a message object.
// Returns the empty string when the object carries no text.
func Text(object map[string]any) string {
	var parts []string
	for _, block := range contentBlocks(object) {
		if block["type"] != "text" {
			continue
		}
		if text, ok := block["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns every tool invocation in the decoded payload, the
// parent's blocks first, then each child's in order. Structured
// extraction on a malformed payload yields nil, never an error.
func (d Decoded) ToolUses() []ToolUse {
	var uses []ToolUse
	objects := make([]map[string]any, 0, 1+len(d.Children))
	if d.Parent != nil {
		objects = append(objects, d.Parent)
	}
	objects = append(objects, d.Children...)
	for _, object := range objects {
		for _, block := range contentBlocks(object) {
			if block["type"] != "tool_use" {
				continue
			}
			name, _ := block["name"].(string)
			if name == "" {
				continue
			}
			input, _ := block["input"].(map[string]any)
			uses = append(uses, ToolUse{Name: name, Input: input})
		}
	}
	return uses
}

// NotificationType returns the "type" field of a notification payload
// parent, empty when absent. Used to route hub notifications (context
// usage, context cleared) without re-parsing.
func (d Decoded) NotificationType() string {
	if d.Parent == nil {
		return ""
	}
	kind, _ := d.Parent["type"].(string)
	return kind
}
