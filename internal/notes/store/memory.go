package store

import (
	"context"
	"fmt"
	"sync"

	"chronicle/internal/notes"
	"chronicle/pkg/platform/sentinel"
)

// InMemory is a map-backed notes store for tests and local development. It
// has no transactional semantics; rollback behavior is only observable with
// the Postgres store.
type InMemory struct {
	mu    sync.RWMutex
	notes map[string]notes.Note
}

func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[string]notes.Note)}
}

func (s *InMemory) Upsert(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = *n
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (*notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, sentinel.ErrNotFound)
	}
	return &n, nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("note %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.notes, id)
	return nil
}
