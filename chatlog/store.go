// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package chatlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/leapmux/leapmux-go/wire"
)

// DefaultPageSize is the history page size used when the caller does
// not configure one. Matches the hub's default page limit.
const DefaultPageSize = 50

// Store holds the per-agent message logs for one workspace.
//
// All methods are safe for concurrent use. An agent id never seen
// before yields an empty log, not an error.
type Store struct {
	history  wire.HistoryClient
	pageSize int

	mu           sync.Mutex
	agents       map[string]*agentLog
	observers    map[int]func(agentID string)
	nextObserver int
}

// agentLog is the state held for one agent.
type agentLog struct {
	// messages is sorted by Seq ascending, except that a thread merge
	// may leave a revised entry at its original position until the
	// surrounding entries catch up. See addLocked.
	messages []wire.ChatMessage

	hasMoreOlder        bool
	initialLoadStarted  bool
	initialLoadComplete bool
	loadingOlder        bool

	streaming string
	todos     []Todo
	// errors maps message id to the delivery error reported for it.
	errors map[string]string
}

// NewStore creates a Store backed by the given history client.
// pageSize <= 0 selects DefaultPageSize.
func NewStore(history wire.HistoryClient, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		history:   history,
		pageSize:  pageSize,
		agents:    make(map[string]*agentLog),
		observers: make(map[int]func(string)),
	}
}

// agent returns the log for agentID, creating it on first reference.
// Callers must hold s.mu.
func (s *Store) agent(agentID string) *agentLog {
	log, ok := s.agents[agentID]
	if !ok {
		log = &agentLog{errors: make(map[string]string)}
		s.agents[agentID] = log
	}
	return log
}

// Subscribe registers an observer invoked with the agent id after
// every mutation of that agent's state. The returned function removes
// the observer. Observers are called outside the store's lock and may
// call back into the store.
func (s *Store) Subscribe(observer func(agentID string)) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = observer
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// notify invokes every observer with agentID. Must be called without
// holding s.mu.
func (s *Store) notify(agentID string) {
	s.mu.Lock()
	observers := make([]func(string), 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()
	for _, observer := range observers {
		observer(agentID)
	}
}

// LoadInitial fetches the most recent history page for agentID and
// installs it. Idempotent: a second call while or after the first
// completes is a no-op. A failed call clears the in-flight marker so
// a later attempt can retry.
func (s *Store) LoadInitial(ctx context.Context, agentID string) error {
	s.mu.Lock()
	log := s.agent(agentID)
	if log.initialLoadStarted {
		s.mu.Unlock()
		return nil
	}
	log.initialLoadStarted = true
	s.mu.Unlock()

	page, err := s.history.AgentMessages(ctx, wire.HistoryRequest{
		AgentID: agentID,
		Limit:   s.pageSize,
	})
	if err != nil {
		s.mu.Lock()
		log.initialLoadStarted = false
		s.mu.Unlock()
		return fmt.Errorf("chatlog: initial load for agent %s: %w", agentID, err)
	}

	s.mu.Lock()
	// Merge rather than overwrite: live events may have landed while
	// the fetch was in flight.
	for _, message := range page.Messages {
		s.addLocked(log, message)
	}
	log.hasMoreOlder = page.HasMore
	log.initialLoadComplete = true
	s.rescanTodosLocked(log)
	s.mu.Unlock()
	s.notify(agentID)
	return nil
}

// LoadOlder fetches the page strictly before the current earliest
// entry and prepends it. No-op when a fetch is already in flight,
// when no older history exists, or when the log is empty.
func (s *Store) LoadOlder(ctx context.Context, agentID string) error {
	s.mu.Lock()
	log := s.agent(agentID)
	if log.loadingOlder || !log.hasMoreOlder || len(log.messages) == 0 {
		s.mu.Unlock()
		return nil
	}
	log.loadingOlder = true
	earliest := log.messages[0].Seq
	s.mu.Unlock()

	page, err := s.history.AgentMessages(ctx, wire.HistoryRequest{
		AgentID:   agentID,
		Limit:     s.pageSize,
		BeforeSeq: earliest,
	})

	s.mu.Lock()
	log.loadingOlder = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("chatlog: load older for agent %s: %w", agentID, err)
	}

	// Set-subtraction on seq so entries already present (from a
	// racing live replay) are not reinserted.
	present := make(map[int64]bool, len(log.messages))
	for _, message := range log.messages {
		present[message.Seq] = true
	}
	var older []wire.ChatMessage
	for _, message := range page.Messages {
		if !present[message.Seq] {
			older = append(older, message)
			if message.DeliveryError != "" {
				log.errors[message.ID] = message.DeliveryError
			}
		}
	}
	log.messages = append(older, log.messages...)
	log.hasMoreOlder = page.HasMore
	s.rescanTodosLocked(log)
	s.mu.Unlock()
	s.notify(agentID)
	return nil
}

// LoadNewer fetches pages strictly after afterSeq until the hub
// reports no more, feeding each page through the AddMessage merge.
// Closes the gap left by a bounded live-replay window after a
// reconnect. Bounded by ctx.
func (s *Store) LoadNewer(ctx context.Context, agentID string, afterSeq int64) error {
	cursor := afterSeq
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.history.AgentMessages(ctx, wire.HistoryRequest{
			AgentID:  agentID,
			Limit:    s.pageSize,
			AfterSeq: cursor,
		})
		if err != nil {
			return fmt.Errorf("chatlog: load newer for agent %s after seq %d: %w", agentID, cursor, err)
		}
		if len(page.Messages) == 0 {
			return nil
		}
		s.mu.Lock()
		log := s.agent(agentID)
		for _, message := range page.Messages {
			s.addLocked(log, message)
			if message.Seq > cursor {
				cursor = message.Seq
			}
		}
		s.rescanTodosLocked(log)
		s.mu.Unlock()
		s.notify(agentID)
		if !page.HasMore {
			return nil
		}
	}
}

// AddMessage merges one message into agentID's log. See addLocked for
// the ordering/dedup algorithm.
func (s *Store) AddMessage(agentID string, message wire.ChatMessage) {
	s.mu.Lock()
	log := s.agent(agentID)
	s.addLocked(log, message)
	s.rescanTodosLocked(log)
	s.mu.Unlock()
	s.notify(agentID)
}

// addLocked is the central ordering/dedup algorithm:
//
//  1. An entry with the same id is updated in place at its current
//     position (thread merge). The search runs from the tail since
//     revisions are almost always recent. Position must not change:
//     a merge that advances seq past siblings that have not arrived
//     yet would otherwise make the seq dedup below discard them.
//  2. A seq beyond the current tail appends (the common case).
//  3. An exact seq already present is a replay duplicate; discard.
//  4. Anything else is an out-of-order arrival; insert at the sorted
//     position by seq.
//
// Callers must hold s.mu.
func (s *Store) addLocked(log *agentLog, message wire.ChatMessage) {
	if message.DeliveryError != "" {
		log.errors[message.ID] = message.DeliveryError
	}

	for i := len(log.messages) - 1; i >= 0; i-- {
		if log.messages[i].ID == message.ID {
			log.messages[i] = message
			return
		}
	}

	count := len(log.messages)
	if count == 0 || message.Seq > log.messages[count-1].Seq {
		log.messages = append(log.messages, message)
		return
	}

	for _, existing := range log.messages {
		if existing.Seq == message.Seq {
			return
		}
	}

	insertAt := count
	for i, existing := range log.messages {
		if existing.Seq > message.Seq {
			insertAt = i
			break
		}
	}
	log.messages = append(log.messages, wire.ChatMessage{})
	copy(log.messages[insertAt+1:], log.messages[insertAt:])
	log.messages[insertAt] = message
}

// TrimOld drops the oldest entries beyond maxCount and marks the log
// as having older history, so the trimmed window can be re-fetched.
func (s *Store) TrimOld(agentID string, maxCount int) {
	s.mu.Lock()
	log := s.agent(agentID)
	if maxCount < 0 || len(log.messages) <= maxCount {
		s.mu.Unlock()
		return
	}
	drop := len(log.messages) - maxCount
	log.messages = append([]wire.ChatMessage(nil), log.messages[drop:]...)
	log.hasMoreOlder = true
	s.rescanTodosLocked(log)
	s.mu.Unlock()
	s.notify(agentID)
}

// DeleteMessage removes the message with the given id, if present.
func (s *Store) DeleteMessage(agentID, messageID string) {
	s.mu.Lock()
	log := s.agent(agentID)
	removed := false
	for i, message := range log.messages {
		if message.ID == messageID {
			log.messages = append(log.messages[:i], log.messages[i+1:]...)
			removed = true
			break
		}
	}
	delete(log.errors, messageID)
	if removed {
		s.rescanTodosLocked(log)
	}
	s.mu.Unlock()
	if removed {
		s.notify(agentID)
	}
}

// SetMessageError sets the delivery error flag for a message; an
// empty message clears it.
func (s *Store) SetMessageError(agentID, messageID, errorMessage string) {
	s.mu.Lock()
	log := s.agent(agentID)
	if errorMessage == "" {
		delete(log.errors, messageID)
	} else {
		log.errors[messageID] = errorMessage
	}
	s.mu.Unlock()
	s.notify(agentID)
}

// MessageError returns the delivery error recorded for a message,
// empty when none.
func (s *Store) MessageError(agentID, messageID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent(agentID).errors[messageID]
}

// Messages returns a copy of agentID's log, sorted by seq ascending.
func (s *Store) Messages(agentID string) []wire.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.agent(agentID)
	out := make([]wire.ChatMessage, len(log.messages))
	copy(out, log.messages)
	return out
}

// MessageCount returns the number of entries in agentID's log.
func (s *Store) MessageCount(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agent(agentID).messages)
}

// TailSeq returns the seq of the newest entry, 0 for an empty log.
func (s *Store) TailSeq(agentID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.agent(agentID)
	if len(log.messages) == 0 {
		return 0
	}
	return log.messages[len(log.messages)-1].Seq
}

// HasMoreOlder reports whether older history exists beyond the
// in-memory window.
func (s *Store) HasMoreOlder(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent(agentID).hasMoreOlder
}

// InitialLoadComplete reports whether LoadInitial has finished for
// agentID.
func (s *Store) InitialLoadComplete(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent(agentID).initialLoadComplete
}

// SetStreamingText replaces the in-progress response buffer.
func (s *Store) SetStreamingText(agentID, text string) {
	s.mu.Lock()
	s.agent(agentID).streaming = text
	s.mu.Unlock()
	s.notify(agentID)
}

// AppendStreamingText appends a streamed delta to the in-progress
// response buffer.
func (s *Store) AppendStreamingText(agentID, delta string) {
	s.mu.Lock()
	s.agent(agentID).streaming += delta
	s.mu.Unlock()
	s.notify(agentID)
}

// StreamingText returns the in-progress response buffer.
func (s *Store) StreamingText(agentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent(agentID).streaming
}

// ClearStreamingText drops the in-progress response buffer.
func (s *Store) ClearStreamingText(agentID string) {
	s.mu.Lock()
	log := s.agent(agentID)
	changed := log.streaming != ""
	log.streaming = ""
	s.mu.Unlock()
	if changed {
		s.notify(agentID)
	}
}
