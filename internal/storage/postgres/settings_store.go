package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"snipetrader/internal/storage"
)

// Keys in the settings table.
const (
	settingsKey = "settings"
	solPriceKey = "sol_price_usd"
)

// SettingsStore implements storage.SettingsStore using PostgreSQL, one
// JSONB row per key.
type SettingsStore struct {
	pool *Pool
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(pool *Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SettingsStore = (*SettingsStore)(nil)

// GetSettings retrieves the settings snapshot. Returns ErrNotFound
// before first initialization.
func (s *SettingsStore) GetSettings(ctx context.Context) (*storage.Settings, error) {
	raw, err := s.get(ctx, settingsKey)
	if err != nil {
		return nil, err
	}
	var out storage.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &out, nil
}

// PutSettings replaces the settings snapshot.
func (s *SettingsStore) PutSettings(ctx context.Context, settings *storage.Settings) error {
	if settings == nil {
		return storage.ErrInvalidInput
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.put(ctx, settingsKey, raw)
}

// GetSOLPrice retrieves the cached SOL/USD price. Returns ErrNotFound
// when no price has been cached yet.
func (s *SettingsStore) GetSOLPrice(ctx context.Context) (float64, error) {
	raw, err := s.get(ctx, solPriceKey)
	if err != nil {
		return 0, err
	}
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil {
		return 0, fmt.Errorf("unmarshal sol price: %w", err)
	}
	return price, nil
}

// PutSOLPrice replaces the cached SOL/USD price.
func (s *SettingsStore) PutSOLPrice(ctx context.Context, price float64) error {
	if price <= 0 {
		return storage.ErrInvalidInput
	}
	raw, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("marshal sol price: %w", err)
	}
	return s.put(ctx, solPriceKey, raw)
}

func (s *SettingsStore) get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return raw, nil
}

func (s *SettingsStore) put(ctx context.Context, key string, raw []byte) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.pool.Exec(ctx, query, key, raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
