package statestore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore provides an in-memory implementation of the TranscriptStore interface.
// It is thread-safe and suitable for development, testing, and single-process runs.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]TurnRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]TurnRecord)}
}

// Append adds a turn to its session's history.
func (s *MemoryStore) Append(ctx context.Context, record TurnRecord) error {
	if record.SessionID == "" {
		return ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[record.SessionID] = append(s.turns[record.SessionID], record)
	return nil
}

// Load returns a copy of a session's turns.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]TurnRecord, len(turns))
	copy(out, turns)
	return out, nil
}

// Delete removes a session's history.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.turns[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.turns, sessionID)
	return nil
}

// Sessions lists the sessions with stored history.
func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.turns))
	for id := range s.turns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
