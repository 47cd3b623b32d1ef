package store

import (
	"context"
	"sync"

	"github.com/pricelens/backend/internal/domain"
)

// MemoryStore keeps the snapshot in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot *domain.Snapshot
}

// NewMemoryStore creates an empty in-memory snapshot store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored snapshot
func (s *MemoryStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return s.snapshot.Clone(), nil
}

// Save stores a copy of snapshot
func (s *MemoryStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	clone := snapshot.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = clone
	return nil
}
