package core

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// MemoryPositionStore keeps positions in process memory. It backs tests and
// deployments that do not need durable state.
type MemoryPositionStore struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]*Position
}

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{
		positions: make(map[uuid.UUID]*Position),
	}
}

func (s *MemoryPositionStore) FindPosition(_ context.Context, accountId uuid.UUID) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[accountId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return position.Clone(), nil
}

func (s *MemoryPositionStore) UpsertPosition(_ context.Context, position *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[position.AccountId] = position.Clone()
	return nil
}

func (s *MemoryPositionStore) ListPositions(_ context.Context) ([]*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]*Position, 0, len(s.positions))
	for _, position := range s.positions {
		positions = append(positions, position.Clone())
	}
	return positions, nil
}
