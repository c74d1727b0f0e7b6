package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// HoldingStore implements storage.HoldingStore using PostgreSQL. The
// bounded snipe history rides along as a JSONB column so a holding
// round-trips as one row.
type HoldingStore struct {
	pool *Pool
}

// NewHoldingStore creates a new HoldingStore.
func NewHoldingStore(pool *Pool) *HoldingStore {
	return &HoldingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HoldingStore = (*HoldingStore)(nil)

// Get retrieves a holding by symbol. Returns ErrNotFound if not exists.
func (s *HoldingStore) Get(ctx context.Context, symbol string) (*domain.Holding, error) {
	query := `
		SELECT symbol, contract_address, full_contract_address,
		       amount, avg_price, total_invested, last_price,
		       source, first_seen_ms, snipe_history
		FROM holdings
		WHERE symbol = $1
	`

	h, err := scanHolding(s.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holding: %w", err)
	}
	return h, nil
}

// Put inserts or replaces the holding for its symbol.
func (s *HoldingStore) Put(ctx context.Context, h *domain.Holding) error {
	if h == nil || h.Symbol == "" {
		return storage.ErrInvalidInput
	}

	history, err := json.Marshal(h.SnipeHistory)
	if err != nil {
		return fmt.Errorf("marshal snipe history: %w", err)
	}

	query := `
		INSERT INTO holdings (
			symbol, contract_address, full_contract_address,
			amount, avg_price, total_invested, last_price,
			source, first_seen_ms, snipe_history
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol) DO UPDATE SET
			contract_address = EXCLUDED.contract_address,
			full_contract_address = EXCLUDED.full_contract_address,
			amount = EXCLUDED.amount,
			avg_price = EXCLUDED.avg_price,
			total_invested = EXCLUDED.total_invested,
			last_price = EXCLUDED.last_price,
			source = EXCLUDED.source,
			first_seen_ms = EXCLUDED.first_seen_ms,
			snipe_history = EXCLUDED.snipe_history
	`

	_, err = s.pool.Exec(ctx, query,
		h.Symbol,
		h.ContractAddress,
		h.FullContractAddress,
		h.Amount,
		h.AvgPrice,
		h.TotalInvested,
		h.LastPrice,
		h.Source,
		h.FirstSeen,
		history,
	)
	if err != nil {
		return fmt.Errorf("put holding: %w", err)
	}
	return nil
}

// List retrieves all holdings, ordered by symbol ASC.
func (s *HoldingStore) List(ctx context.Context) ([]*domain.Holding, error) {
	query := `
		SELECT symbol, contract_address, full_contract_address,
		       amount, avg_price, total_invested, last_price,
		       source, first_seen_ms, snipe_history
		FROM holdings
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holding rows: %w", err)
	}
	return holdings, nil
}

// Delete removes the holding for a symbol. Returns ErrNotFound if not
// exists.
func (s *HoldingStore) Delete(ctx context.Context, symbol string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM holdings WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// row is the shared scan target of QueryRow and Query results.
type row interface {
	Scan(dest ...any) error
}

// scanHolding scans a single row into a Holding.
func scanHolding(r row) (*domain.Holding, error) {
	var h domain.Holding
	var history []byte

	err := r.Scan(
		&h.Symbol,
		&h.ContractAddress,
		&h.FullContractAddress,
		&h.Amount,
		&h.AvgPrice,
		&h.TotalInvested,
		&h.LastPrice,
		&h.Source,
		&h.FirstSeen,
		&history,
	)
	if err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &h.SnipeHistory); err != nil {
			return nil, fmt.Errorf("unmarshal snipe history: %w", err)
		}
	}
	return &h, nil
}
