// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapmux/leapmux-go/wire"
)

func TestHistoryClientValidatesConfig(t *testing.T) {
	if _, err := NewHistoryClient(HistoryConfig{Tokens: wire.StaticToken("t")}); err == nil {
		t.Fatal("NewHistoryClient accepted an empty base URL")
	}
	if _, err := NewHistoryClient(HistoryConfig{BaseURL: "https://hub.test"}); err == nil {
		t.Fatal("NewHistoryClient accepted a nil token source")
	}
}

func TestAgentMessages(t *testing.T) {
	page := wire.HistoryPage{
		Messages: []wire.ChatMessage{
			{ID: "m1", AgentID: "agent-1", Seq: 1, Role: wire.RoleUser},
			{ID: "m2", AgentID: "agent-1", Seq: 2, Role: wire.RoleAssistant},
		},
		HasMore: true,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agents/agent-1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q", got)
		}
		query := r.URL.Query()
		if query.Get("limit") != "25" || query.Get("before_seq") != "40" {
			t.Errorf("query = %v", query)
		}
		if query.Has("after_seq") {
			t.Errorf("unset cursor sent: %v", query)
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client, err := NewHistoryClient(HistoryConfig{
		BaseURL: server.URL,
		Tokens:  wire.StaticToken("token-1"),
	})
	if err != nil {
		t.Fatalf("NewHistoryClient: %v", err)
	}
	got, err := client.AgentMessages(context.Background(), wire.HistoryRequest{
		AgentID:   "agent-1",
		Limit:     25,
		BeforeSeq: 40,
	})
	if err != nil {
		t.Fatalf("AgentMessages: %v", err)
	}
	if len(got.Messages) != 2 || !got.HasMore {
		t.Fatalf("page = %+v, want 2 messages with has_more", got)
	}
}

func TestAgentMessagesHubError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "not_found",
			"message": "no such agent",
		})
	}))
	defer server.Close()

	client, err := NewHistoryClient(HistoryConfig{
		BaseURL: server.URL,
		Tokens:  wire.StaticToken("token-1"),
	})
	if err != nil {
		t.Fatalf("NewHistoryClient: %v", err)
	}
	_, err = client.AgentMessages(context.Background(), wire.HistoryRequest{AgentID: "gone"})
	if !wire.IsHubError(err, wire.ErrCodeNotFound) {
		t.Fatalf("error = %v, want not_found hub error", err)
	}
	var hubErr *wire.HubError
	if !errors.As(err, &hubErr) || hubErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want status 404", err)
	}
}

func TestAgentMessagesOpaqueError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewHistoryClient(HistoryConfig{
		BaseURL: server.URL,
		Tokens:  wire.StaticToken("token-1"),
	})
	if err != nil {
		t.Fatalf("NewHistoryClient: %v", err)
	}
	_, err = client.AgentMessages(context.Background(), wire.HistoryRequest{AgentID: "agent-1"})
	var hubErr *wire.HubError
	if !errors.As(err, &hubErr) {
		t.Fatalf("error = %v, want synthesized hub error", err)
	}
	if hubErr.Code != wire.ErrCodeInternal || hubErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("hub error = %+v", hubErr)
	}
}
