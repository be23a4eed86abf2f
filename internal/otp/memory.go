package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store. It is useful for tests and
// for single-process deployments that can lose outstanding codes on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*Record
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[uuid.UUID]*Record),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// DeleteAllFor implements Store.
func (s *MemoryStore) DeleteAllFor(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.Address == address {
			delete(s.rows, id)
		}
	}
	return nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID != uuid.Nil {
		existing, ok := s.rows[r.ID]
		if !ok {
			return ErrNotFound
		}
		if existing.Consumed {
			r.Consumed = true
		}
	}
	stampForSave(r, s.now())
	cp := *r
	s.rows[r.ID] = &cp
	return nil
}

// FindByAddressAndCode implements Store.
func (s *MemoryStore) FindByAddressAndCode(_ context.Context, address, code string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Record
	for _, r := range s.rows {
		if r.Address != address || r.Code != code {
			continue
		}
		if found == nil || r.IssuedAt.After(found.IssuedAt) {
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

// DeleteExpiredBefore implements Store.
func (s *MemoryStore) DeleteExpiredBefore(_ context.Context, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.rows {
		if r.ExpiresAt.Before(ts) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
