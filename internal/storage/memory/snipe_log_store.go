package memory

import (
	"context"
	"sync"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// SnipeLogStore is an in-memory implementation of storage.SnipeLogStore,
// bounded at domain.SnipeLogCap with FIFO eviction.
type SnipeLogStore struct {
	mu     sync.RWMutex
	events []domain.SnipeEvent // oldest first
}

// NewSnipeLogStore creates a new in-memory snipe log.
func NewSnipeLogStore() *SnipeLogStore {
	return &SnipeLogStore{}
}

// Append adds a snipe event, evicting the oldest beyond the cap.
func (s *SnipeLogStore) Append(_ context.Context, e domain.SnipeEvent) error {
	if e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	if n := len(s.events); n > domain.SnipeLogCap {
		s.events = s.events[n-domain.SnipeLogCap:]
	}
	return nil
}

// Recent retrieves up to limit most recent events, oldest first. A
// non-positive limit returns everything.
func (s *SnipeLogStore) Recent(_ context.Context, limit int) ([]domain.SnipeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.SnipeEvent, n)
	copy(out, s.events[len(s.events)-n:])
	return out, nil
}

var _ storage.SnipeLogStore = (*SnipeLogStore)(nil)
