package store

import (
	"context"
	"sync"
	"time"

	"github.com/palinopr/leadrouter/internal/identity"
)

// MemoryStore is an in-process Store for tests, the simulator, and
// single-node deployments. It applies the same optimistic version check as
// the Redis adapter.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[identity.ThreadKey]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[identity.ThreadKey]*State)}
}

// Load returns a copy of the stored state.
func (s *MemoryStore) Load(ctx context.Context, key identity.ThreadKey) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Save stores a copy, rejecting stale versions.
func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.states[state.ThreadKey]
	if ok && existing.Version != state.Version {
		return ErrConflict
	}
	if !ok && state.Version != 0 {
		return ErrConflict
	}

	next := state.Clone()
	next.Version = state.Version + 1
	next.UpdatedAt = time.Now().UTC()
	s.states[state.ThreadKey] = next

	state.Version = next.Version
	state.UpdatedAt = next.UpdatedAt
	return nil
}

// Len reports how many threads have state, for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
