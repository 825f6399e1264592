package agent

import (
	"context"
	"sync"
)

// Storage persists session state snapshots. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Save persists a snapshot, replacing any previous one for the same ID.
	Save(ctx context.Context, state *SessionState) error
	// Load returns the snapshot for id, or ErrSessionNotFound.
	Load(ctx context.Context, id string) (*SessionState, error)
	// Delete removes the snapshot for id. Deleting a missing session is not
	// an error.
	Delete(ctx context.Context, id string) error
	// List returns the IDs of all persisted sessions.
	List(ctx context.Context) ([]string, error)
}

// MemoryStorage is an in-memory Storage. Snapshots are deep-copied on both
// save and load so callers never alias stored state.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]*SessionState)}
}

func (s *MemoryStorage) Save(_ context.Context, state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = state.Clone()
	return nil
}

func (s *MemoryStorage) Load(_ context.Context, id string) (*SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStorage) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}
