package services

import (
	"sync"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// PendingStore is the process-wide queue of signup requests awaiting an
// administrator decision.
type PendingStore struct {
	mu      sync.Mutex
	nextID  int64
	items   []models.PendingRequest
	claimed map[int64]bool
	now     func() time.Time
}

func NewPendingStore() *PendingStore {
	return &PendingStore{claimed: make(map[int64]bool), now: time.Now}
}

// Add assigns the next sequential id and the creation time.
func (s *PendingStore) Add(req models.PendingRequest) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.ID = s.nextID
	req.CreatedAt = s.now()
	s.items = append(s.items, req)
	return req.ID
}

// GetAll returns a copy of the queue in insertion order.
func (s *PendingStore) GetAll() []models.PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingRequest, len(s.items))
	copy(out, s.items)
	return out
}

func (s *PendingStore) GetByID(id int64) (models.PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.PendingRequest{}, false
	}
	return s.items[i], true
}

// Remove deletes the request. Removing an unknown id is a no-op.
func (s *PendingStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, id)
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

// Claim reserves a request for one decision. A second claim on the same id
// fails with models.ErrNotFound until Release or Remove.
func (s *PendingStore) Claim(id int64) (models.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 || s.claimed[id] {
		return models.PendingRequest{}, models.ErrNotFound
	}
	s.claimed[id] = true
	return s.items[i], nil
}

// Release gives back a claim after a failed decision.
func (s *PendingStore) Release(id int64) {
	s.mu.Lock()
	delete(s.claimed, id)
	s.mu.Unlock()
}

func (s *PendingStore) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
