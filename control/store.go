// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"sync"

	"github.com/leapmux/leapmux-go/wire"
)

// DefaultResolvedCapacity bounds the resolved-request memory. When
// the memory grows past the capacity it is cleared and restarted:
// replay windows are short, so remembering the most recent
// resolutions is what matters.
const DefaultResolvedCapacity = 100

// Request is one pending approval, scoped to an agent and keyed by
// its request id. Payload is opaque JSON interpreted only by the
// approval UI.
type Request struct {
	AgentID   string
	RequestID string
	Payload   wire.ControlPayload
}

// Store holds the pending control requests for one workspace.
// All methods are safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	pending     map[string][]Request
	resolved    map[string]bool
	resolvedCap int

	observers    map[int]func(agentID string)
	nextObserver int
}

// NewStore creates an empty Store. capacity <= 0 selects
// DefaultResolvedCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultResolvedCapacity
	}
	return &Store{
		pending:     make(map[string][]Request),
		resolved:    make(map[string]bool),
		resolvedCap: capacity,
		observers:   make(map[int]func(string)),
	}
}

// Subscribe registers an observer invoked with the agent id after
// every change to that agent's pending set. The returned function
// removes the observer.
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

// AddRequest appends a pending request. Ignored when the request id
// was recently resolved (replay) or is already pending (duplicate
// delivery). Returns true when the request was added.
func (s *Store) AddRequest(request Request) bool {
	s.mu.Lock()
	if s.resolved[request.RequestID] {
		s.mu.Unlock()
		return false
	}
	for _, existing := range s.pending[request.AgentID] {
		if existing.RequestID == request.RequestID {
			s.mu.Unlock()
			return false
		}
	}
	s.pending[request.AgentID] = append(s.pending[request.AgentID], request)
	s.mu.Unlock()
	s.notify(request.AgentID)
	return true
}

// RemoveRequest resolves a pending request. The id enters the
// resolved memory before the pending entry is removed, so a
// concurrent re-delivery cannot re-add it. Removing an id that is not
// pending still records the resolution.
func (s *Store) RemoveRequest(agentID, requestID string) {
	s.mu.Lock()
	// Clear-and-restart when the memory is full. Cheaper than LRU and
	// good enough: only requests resolved within one replay window
	// need protection.
	if len(s.resolved) >= s.resolvedCap {
		s.resolved = make(map[string]bool)
	}
	s.resolved[requestID] = true

	requests := s.pending[agentID]
	for i, existing := range requests {
		if existing.RequestID == requestID {
			s.pending[agentID] = append(requests[:i], requests[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify(agentID)
}

// Pending returns a copy of agentID's pending requests in arrival
// order.
func (s *Store) Pending(agentID string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests := s.pending[agentID]
	out := make([]Request, len(requests))
	copy(out, requests)
	return out
}

// PendingCount returns the total number of pending requests across
// all agents.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, requests := range s.pending {
		count += len(requests)
	}
	return count
}

// ClearAgent drops agentID's pending requests. The resolved memory is
// untouched — it must survive reconnects.
func (s *Store) ClearAgent(agentID string) {
	s.mu.Lock()
	_, had := s.pending[agentID]
	delete(s.pending, agentID)
	s.mu.Unlock()
	if had {
		s.notify(agentID)
	}
}

// ClearAll drops every pending request. The resolved memory is
// untouched.
func (s *Store) ClearAll() {
	s.mu.Lock()
	cleared := make([]string, 0, len(s.pending))
	for agentID := range s.pending {
		cleared = append(cleared, agentID)
	}
	s.pending = make(map[string][]Request)
	s.mu.Unlock()
	for _, agentID := range cleared {
		s.notify(agentID)
	}
}
