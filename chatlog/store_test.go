// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package chatlog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/leapmux/leapmux-go/wire"
)

// fakeHistory implements wire.HistoryClient over an in-memory,
// seq-sorted message slice per agent, mirroring the hub's pagination
// semantics.
type fakeHistory struct {
	mu       sync.Mutex
	messages map[string][]wire.ChatMessage
	calls    int
	err      error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{messages: make(map[string][]wire.ChatMessage)}
}

func (f *fakeHistory) add(agentID string, messages ...wire.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[agentID] = append(f.messages[agentID], messages...)
}

func (f *fakeHistory) AgentMessages(ctx context.Context, request wire.HistoryRequest) (*wire.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	all := f.messages[request.AgentID]
	limit := request.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	switch {
	case request.BeforeSeq != 0:
		var older []wire.ChatMessage
		for _, message := range all {
			if message.Seq < request.BeforeSeq {
				older = append(older, message)
			}
		}
		start := len(older) - limit
		if start < 0 {
			start = 0
		}
		return &wire.HistoryPage{Messages: older[start:], HasMore: start > 0}, nil
	case request.AfterSeq != 0:
		var newer []wire.ChatMessage
		for _, message := range all {
			if message.Seq > request.AfterSeq {
				newer = append(newer, message)
			}
		}
		end := limit
		if end > len(newer) {
			end = len(newer)
		}
		return &wire.HistoryPage{Messages: newer[:end], HasMore: end < len(newer)}, nil
	default:
		start := len(all) - limit
		if start < 0 {
			start = 0
		}
		return &wire.HistoryPage{Messages: all[start:], HasMore: start > 0}, nil
	}
}

func message(id string, seq int64) wire.ChatMessage {
	return wire.ChatMessage{
		ID:      id,
		AgentID: "agent-1",
		Seq:     seq,
		Role:    wire.RoleAssistant,
		Content: []byte(fmt.Sprintf(`{"message":{"content":[{"type":"text","text":"m%d"}]}}`, seq)),
	}
}

func seqs(messages []wire.ChatMessage) []int64 {
	out := make([]int64, len(messages))
	for i, m := range messages {
		out[i] = m.Seq
	}
	return out
}

func assertSeqs(t *testing.T, got []wire.ChatMessage, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log has seqs %v, want %v", seqs(got), want)
	}
	for i, message := range got {
		if message.Seq != want[i] {
			t.Fatalf("log has seqs %v, want %v", seqs(got), want)
		}
	}
}

func TestAddMessageOrdering(t *testing.T) {
	t.Run("interleaved arrivals stay strictly increasing", func(t *testing.T) {
		store := NewStore(newFakeHistory(), 0)
		for _, seq := range []int64{3, 1, 5, 2, 4, 9, 7} {
			store.AddMessage("agent-1", message(fmt.Sprintf("m%d", seq), seq))
		}
		assertSeqs(t, store.Messages("agent-1"), 1, 2, 3, 4, 5, 7, 9)
	})

	t.Run("idempotent on byte-identical replay", func(t *testing.T) {
		store := NewStore(newFakeHistory(), 0)
		store.AddMessage("agent-1", message("m1", 1))
		store.AddMessage("agent-1", message("m2", 2))
		store.AddMessage("agent-1", message("m2", 2))
		assertSeqs(t, store.Messages("agent-1"), 1, 2)
	})

	t.Run("same seq different id is a replay duplicate", func(t *testing.T) {
		store := NewStore(newFakeHistory(), 0)
		first := message("m-first", 5)
		store.AddMessage("agent-1", first)
		store.AddMessage("agent-1", message("m-second", 5))
		got := store.Messages("agent-1")
		assertSeqs(t, got, 5)
		if got[0].ID != "m-first" {
			t.Fatalf("retained %q, want the first-seen entry", got[0].ID)
		}
	})

	t.Run("thread merge updates in place", func(t *testing.T) {
		store := NewStore(newFakeHistory(), 0)
		store.AddMessage("agent-1", message("mX", 5))
		store.AddMessage("agent-1", message("mY", 6))
		revised := message("mX", 8)
		store.AddMessage("agent-1", revised)
		got := store.Messages("agent-1")
		if len(got) != 2 {
			t.Fatalf("log length %d, want 2 (merge, not duplicate)", len(got))
		}
		// Position unchanged: the revised entry stays where mX was.
		if got[0].ID != "mX" || got[0].Seq != 8 {
			t.Fatalf("got[0] = %s/%d, want mX/8", got[0].ID, got[0].Seq)
		}
	})

	t.Run("merge does not block late siblings", func(t *testing.T) {
		// A merge advanced mX from seq 5 to 8 before its sibling at
		// seq 6 arrived. The sibling must still be inserted, not
		// discarded by the seq dedup.
		store := NewStore(newFakeHistory(), 0)
		store.AddMessage("agent-1", message("mX", 5))
		store.AddMessage("agent-1", message("mX", 8))
		store.AddMessage("agent-1", message("mSib", 6))
		got := store.Messages("agent-1")
		if len(got) != 2 {
			t.Fatalf("log length %d, want 2", len(got))
		}
		found := false
		for _, entry := range got {
			if entry.ID == "mSib" && entry.Seq == 6 {
				found = true
			}
		}
		if !found {
			t.Fatalf("sibling discarded: %v", seqs(got))
		}
	})

	t.Run("unknown agent yields empty log", func(t *testing.T) {
		store := NewStore(newFakeHistory(), 0)
		if got := store.Messages("never-seen"); len(got) != 0 {
			t.Fatalf("got %d messages", len(got))
		}
		if store.TailSeq("never-seen") != 0 {
			t.Fatal("tail seq of empty log should be 0")
		}
	})
}

func TestDeliveryError(t *testing.T) {
	store := NewStore(newFakeHistory(), 0)
	failed := message("mErr", 1)
	failed.DeliveryError = "worker unreachable"
	store.AddMessage("agent-1", failed)

	// Recorded in the side map, and the log mutation still happened.
	if got := store.MessageError("agent-1", "mErr"); got != "worker unreachable" {
		t.Fatalf("MessageError = %q", got)
	}
	assertSeqs(t, store.Messages("agent-1"), 1)

	store.SetMessageError("agent-1", "mErr", "")
	if got := store.MessageError("agent-1", "mErr"); got != "" {
		t.Fatalf("error not cleared: %q", got)
	}
}

func TestLoadInitial(t *testing.T) {
	ctx := context.Background()

	t.Run("installs most recent page", func(t *testing.T) {
		history := newFakeHistory()
		for seq := int64(1); seq <= 8; seq++ {
			history.add("agent-1", message(fmt.Sprintf("m%d", seq), seq))
		}
		store := NewStore(history, 5)
		if err := store.LoadInitial(ctx, "agent-1"); err != nil {
			t.Fatalf("LoadInitial failed: %v", err)
		}
		assertSeqs(t, store.Messages("agent-1"), 4, 5, 6, 7, 8)
		if !store.HasMoreOlder("agent-1") {
			t.Fatal("older history exists but HasMoreOlder is false")
		}
		if !store.InitialLoadComplete("agent-1") {
			t.Fatal("InitialLoadComplete should be true")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		history := newFakeHistory()
		history.add("agent-1", message("m1", 1))
		store := NewStore(history, 5)
		if err := store.LoadInitial(ctx, "agent-1"); err != nil {
			t.Fatalf("LoadInitial failed: %v", err)
		}
		if err := store.LoadInitial(ctx, "agent-1"); err != nil {
			t.Fatalf("second LoadInitial failed: %v", err)
		}
		if history.calls != 1 {
			t.Fatalf("history called %d times, want 1", history.calls)
		}
	})

	t.Run("failure permits retry", func(t *testing.T) {
		history := newFakeHistory()
		history.err = fmt.Errorf("hub down")
		store := NewStore(history, 5)
		if err := store.LoadInitial(ctx, "agent-1"); err == nil {
			t.Fatal("expected error")
		}
		history.mu.Lock()
		history.err = nil
		history.mu.Unlock()
		history.add("agent-1", message("m1", 1))
		if err := store.LoadInitial(ctx, "agent-1"); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		assertSeqs(t, store.Messages("agent-1"), 1)
	})
}

func TestLoadOlder(t *testing.T) {
	ctx := context.Background()
	history := newFakeHistory()
	for seq := int64(1); seq <= 12; seq++ {
		history.add("agent-1", message(fmt.Sprintf("m%d", seq), seq))
	}
	store := NewStore(history, 4)
	if err := store.LoadInitial(ctx, "agent-1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	assertSeqs(t, store.Messages("agent-1"), 9, 10, 11, 12)

	if err := store.LoadOlder(ctx, "agent-1"); err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}
	assertSeqs(t, store.Messages("agent-1"), 5, 6, 7, 8, 9, 10, 11, 12)
	if !store.HasMoreOlder("agent-1") {
		t.Fatal("seqs 1..4 remain, HasMoreOlder should be true")
	}

	if err := store.LoadOlder(ctx, "agent-1"); err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}
	assertSeqs(t, store.Messages("agent-1"), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	if store.HasMoreOlder("agent-1") {
		t.Fatal("history exhausted, HasMoreOlder should be false")
	}

	// Exhausted: further calls are no-ops.
	calls := history.calls
	if err := store.LoadOlder(ctx, "agent-1"); err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}
	if history.calls != calls {
		t.Fatal("LoadOlder fetched despite hasMoreOlder=false")
	}
}

func TestLoadNewerClosesGap(t *testing.T) {
	// Resume after gap: the log holds 1..10, the hub holds up to 120,
	// and the live replay window was bounded. LoadNewer(afterSeq=10)
	// must leave 1..120 with no gaps and no duplicates.
	ctx := context.Background()
	history := newFakeHistory()
	for seq := int64(1); seq <= 120; seq++ {
		history.add("agent-1", message(fmt.Sprintf("m%d", seq), seq))
	}
	store := NewStore(history, 50)
	for seq := int64(1); seq <= 10; seq++ {
		store.AddMessage("agent-1", message(fmt.Sprintf("m%d", seq), seq))
	}
	// A bounded live replay already delivered the newest entries.
	store.AddMessage("agent-1", message("m119", 119))
	store.AddMessage("agent-1", message("m120", 120))

	if err := store.LoadNewer(ctx, "agent-1", 10); err != nil {
		t.Fatalf("LoadNewer failed: %v", err)
	}

	got := store.Messages("agent-1")
	want := make([]int64, 0, 120)
	for seq := int64(1); seq <= 120; seq++ {
		want = append(want, seq)
	}
	assertSeqs(t, got, want...)
}

func TestTrimOld(t *testing.T) {
	store := NewStore(newFakeHistory(), 0)
	for seq := int64(1); seq <= 10; seq++ {
		store.AddMessage("agent-1", message(fmt.Sprintf("m%d", seq), seq))
	}
	store.TrimOld("agent-1", 4)
	assertSeqs(t, store.Messages("agent-1"), 7, 8, 9, 10)
	if !store.HasMoreOlder("agent-1") {
		t.Fatal("trim must set hasMoreOlder")
	}

	// Under the cap: no-op.
	store.TrimOld("agent-1", 100)
	assertSeqs(t, store.Messages("agent-1"), 7, 8, 9, 10)
}

func TestDeleteMessage(t *testing.T) {
	store := NewStore(newFakeHistory(), 0)
	store.AddMessage("agent-1", message("m1", 1))
	store.AddMessage("agent-1", message("m2", 2))
	store.DeleteMessage("agent-1", "m1")
	assertSeqs(t, store.Messages("agent-1"), 2)
	// Deleting an absent message is a no-op.
	store.DeleteMessage("agent-1", "mZ")
	assertSeqs(t, store.Messages("agent-1"), 2)
}

func TestStreamingText(t *testing.T) {
	store := NewStore(newFakeHistory(), 0)
	store.AppendStreamingText("agent-1", "Think")
	store.AppendStreamingText("agent-1", "ing...")
	if got := store.StreamingText("agent-1"); got != "Thinking..." {
		t.Fatalf("StreamingText = %q", got)
	}
	store.ClearStreamingText("agent-1")
	if got := store.StreamingText("agent-1"); got != "" {
		t.Fatalf("buffer not cleared: %q", got)
	}
}

func TestObserverNotification(t *testing.T) {
	store := NewStore(newFakeHistory(), 0)
	var notified []string
	cancel := store.Subscribe(func(agentID string) {
		notified = append(notified, agentID)
	})
	store.AddMessage("agent-1", message("m1", 1))
	if len(notified) != 1 || notified[0] != "agent-1" {
		t.Fatalf("notified = %v", notified)
	}
	cancel()
	store.AddMessage("agent-1", message("m2", 2))
	if len(notified) != 1 {
		t.Fatal("observer called after unsubscribe")
	}
}
