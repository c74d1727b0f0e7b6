package storage

import (
	"context"

	"snipetrader/internal/domain"
)

// HoldingStore provides access to the persisted portfolio. Holdings are
// read and written as whole-object snapshots; callers own the
// read-modify-write discipline across async boundaries.
type HoldingStore interface {
	// Get retrieves a holding by symbol. Returns ErrNotFound if not exists.
	Get(ctx context.Context, symbol string) (*domain.Holding, error)

	// Put inserts or replaces the holding for its symbol.
	Put(ctx context.Context, h *domain.Holding) error

	// List retrieves all holdings, ordered by symbol ASC.
	List(ctx context.Context) ([]*domain.Holding, error)

	// Delete removes the holding for a symbol. Returns ErrNotFound if
	// not exists.
	Delete(ctx context.Context, symbol string) error
}

// SnipeLogStore keeps the global bounded log of recent snipes, newest
// last, capped at domain.SnipeLogCap with FIFO eviction.
type SnipeLogStore interface {
	// Append adds a snipe event, evicting the oldest beyond the cap.
	Append(ctx context.Context, e domain.SnipeEvent) error

	// Recent retrieves up to limit most recent events, oldest first.
	Recent(ctx context.Context, limit int) ([]domain.SnipeEvent, error)
}

// PriceHistoryStore records every successful valuation refresh.
type PriceHistoryStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves all points for a symbol, ordered by
	// timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for a symbol within [start, end]
	// (inclusive, Unix ms).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error)
}

// Settings holds user-tunable simulation parameters.
type Settings struct {
	StartingBalanceSOL float64 `json:"startingBalanceSOL"`
	PriceSource        string  `json:"priceSource"`
	UpdateIntervalMs   int64   `json:"updateInterval"`
}

// SettingsStore persists settings and the cached reference-asset price.
type SettingsStore interface {
	// GetSettings retrieves the settings snapshot. Returns ErrNotFound
	// before first initialization.
	GetSettings(ctx context.Context) (*Settings, error)

	// PutSettings replaces the settings snapshot.
	PutSettings(ctx context.Context, s *Settings) error

	// GetSOLPrice retrieves the cached SOL/USD price. Returns
	// ErrNotFound when no price has been cached yet.
	GetSOLPrice(ctx context.Context) (float64, error)

	// PutSOLPrice replaces the cached SOL/USD price.
	PutSOLPrice(ctx context.Context, price float64) error
}
