package memory

import (
	"context"
	"sync"

	"snipetrader/internal/storage"
)

// SettingsStore is an in-memory implementation of storage.SettingsStore.
type SettingsStore struct {
	mu       sync.RWMutex
	settings *storage.Settings
	solPrice float64
	hasPrice bool
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{}
}

// GetSettings retrieves the settings snapshot. Returns ErrNotFound
// before first initialization.
func (s *SettingsStore) GetSettings(_ context.Context) (*storage.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, storage.ErrNotFound
	}
	settingsCopy := *s.settings
	return &settingsCopy, nil
}

// PutSettings replaces the settings snapshot.
func (s *SettingsStore) PutSettings(_ context.Context, in *storage.Settings) error {
	if in == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	settingsCopy := *in
	s.settings = &settingsCopy
	return nil
}

// GetSOLPrice retrieves the cached SOL/USD price. Returns ErrNotFound
// when no price has been cached yet.
func (s *SettingsStore) GetSOLPrice(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasPrice {
		return 0, storage.ErrNotFound
	}
	return s.solPrice, nil
}

// PutSOLPrice replaces the cached SOL/USD price.
func (s *SettingsStore) PutSOLPrice(_ context.Context, price float64) error {
	if price <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.solPrice = price
	s.hasPrice = true
	return nil
}

var _ storage.SettingsStore = (*SettingsStore)(nil)
