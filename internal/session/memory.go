package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps the identifier for the lifetime of the process only
type MemoryStore struct {
	id    string
	newID func() string
	mu    sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{newID: uuid.NewString}
}

func (s *MemoryStore) GetOrCreate(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		s.id = s.newID()
	}
	return s.id, nil
}

func (s *MemoryStore) Reset(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = freshID(s.newID, s.id)
	return s.id, nil
}
