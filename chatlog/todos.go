// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package chatlog

import (
	"github.com/leapmux/leapmux-go/lib/msgcodec"
	"github.com/leapmux/leapmux-go/wire"
)

// todoTool is the structured task list tool name recognized in
// assistant payloads.
const todoTool = "TodoWrite"

// Todo is one entry of an agent's structured task list.
type Todo struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm,omitempty"`
}

// Todos returns the most recent structured task list extracted from
// agentID's visible window, nil when none exists.
func (s *Store) Todos(agentID string) []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.agent(agentID)
	if log.todos == nil {
		return nil
	}
	out := make([]Todo, len(log.todos))
	copy(out, log.todos)
	return out
}

// ClearTodos drops the cached task list. Called on a context-reset
// notification; a later mutation re-derives from whatever remains in
// the window.
func (s *Store) ClearTodos(agentID string) {
	s.mu.Lock()
	s.agent(agentID).todos = nil
	s.mu.Unlock()
	s.notify(agentID)
}

// rescanTodosLocked re-derives the cached task list by scanning the
// window from the tail for the most recent task list invocation.
// Runs after every log mutation. O(window) in the worst case, but the
// hit is almost always near the tail. Callers must hold s.mu.
func (s *Store) rescanTodosLocked(log *agentLog) {
	for i := len(log.messages) - 1; i >= 0; i-- {
		message := log.messages[i]
		if message.Role != "" && message.Role != wire.RoleAssistant {
			continue
		}
		decoded := msgcodec.Decode(message.Content, message.ContentCompression)
		uses := decoded.ToolUses()
		// The last invocation within one payload wins: merged thread
		// children are appended in delivery order.
		for j := len(uses) - 1; j >= 0; j-- {
			if uses[j].Name != todoTool {
				continue
			}
			log.todos = parseTodos(uses[j].Input)
			return
		}
	}
	log.todos = nil
}

// parseTodos extracts the task list from a TodoWrite input object.
func parseTodos(input map[string]any) []Todo {
	entries, _ := input["todos"].([]any)
	todos := make([]Todo, 0, len(entries))
	for _, entry := range entries {
		object, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		content, _ := object["content"].(string)
		status, _ := object["status"].(string)
		activeForm, _ := object["activeForm"].(string)
		if content == "" {
			continue
		}
		todos = append(todos, Todo{Content: content, Status: status, ActiveForm: activeForm})
	}
	if len(todos) == 0 {
		return []Todo{}
	}
	return todos
}
