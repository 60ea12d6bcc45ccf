package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// MemoryRequestStore keeps withdrawal requests in process memory.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[uint64]*Request
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		requests: make(map[uint64]*Request),
	}
}

func (s *MemoryRequestStore) FindRequest(_ context.Context, id uint64) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return request.Clone(), nil
}

func (s *MemoryRequestStore) UpsertRequest(_ context.Context, request *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[request.Id] = request.Clone()
	return nil
}

func (s *MemoryRequestStore) ListRequestsByAccount(_ context.Context, accountId uuid.UUID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(r *Request) bool { return r.AccountId == accountId }), nil
}

func (s *MemoryRequestStore) ListRequestsByStatus(_ context.Context, status Status) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(r *Request) bool { return r.Status == status }), nil
}

func (s *MemoryRequestStore) CountRequests(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.requests)), nil
}

func (s *MemoryRequestStore) MaxRequestId(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxId uint64
	for id := range s.requests {
		if id > maxId {
			maxId = id
		}
	}
	return maxId, nil
}

func (s *MemoryRequestStore) filter(keep func(*Request) bool) []*Request {
	matched := make([]*Request, 0, len(s.requests))
	for _, request := range s.requests {
		if keep(request) {
			matched = append(matched, request.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Id < matched[j].Id })
	return matched
}
