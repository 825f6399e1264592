package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage persists each session as {dir}/{id}.json, pretty-printed for
// hand inspection. Unknown top-level fields in existing files survive a
// load/save round-trip.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the storage root directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStorage) Save(_ context.Context, state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.ID, err)
	}
	if err := os.WriteFile(s.path(state.ID), data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", state.ID, err)
	}
	return nil
}

func (s *FileStorage) Load(_ context.Context, id string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}

func (s *FileStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *FileStorage) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
