package memory

import (
	"context"
	"sort"
	"sync"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// HoldingStore is an in-memory implementation of storage.HoldingStore.
type HoldingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Holding // keyed by symbol
}

// NewHoldingStore creates a new in-memory holding store.
func NewHoldingStore() *HoldingStore {
	return &HoldingStore{
		data: make(map[string]*domain.Holding),
	}
}

// Get retrieves a holding by symbol. Returns ErrNotFound if not exists.
func (s *HoldingStore) Get(_ context.Context, symbol string) (*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.data[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyHolding(h), nil
}

// Put inserts or replaces the holding for its symbol.
func (s *HoldingStore) Put(_ context.Context, h *domain.Holding) error {
	if h == nil || h.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[h.Symbol] = copyHolding(h)
	return nil
}

// Delete removes the holding for a symbol. Returns ErrNotFound if not
// exists.
func (s *HoldingStore) Delete(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[symbol]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, symbol)
	return nil
}

// List retrieves all holdings, ordered by symbol ASC.
func (s *HoldingStore) List(_ context.Context) ([]*domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Holding, 0, len(s.data))
	for _, h := range s.data {
		result = append(result, copyHolding(h))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

// copyHolding deep-copies so callers cannot mutate stored state.
func copyHolding(h *domain.Holding) *domain.Holding {
	out := *h
	out.SnipeHistory = append([]domain.SnipeEvent(nil), h.SnipeHistory...)
	return &out
}

var _ storage.HoldingStore = (*HoldingStore)(nil)
