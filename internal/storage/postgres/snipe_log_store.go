package postgres

import (
	"context"
	"fmt"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// SnipeLogStore implements storage.SnipeLogStore using PostgreSQL. The
// cap is enforced on append by trimming rows beyond the newest
// domain.SnipeLogCap.
type SnipeLogStore struct {
	pool *Pool
}

// NewSnipeLogStore creates a new SnipeLogStore.
func NewSnipeLogStore(pool *Pool) *SnipeLogStore {
	return &SnipeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnipeLogStore = (*SnipeLogStore)(nil)

// Append adds a snipe event, evicting the oldest beyond the cap.
func (s *SnipeLogStore) Append(ctx context.Context, e domain.SnipeEvent) error {
	if e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO snipe_log (
			symbol, amount_sol, amount_usd, tokens_received, price, source, timestamp_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insert,
		e.Symbol,
		e.AmountSOL,
		e.AmountUSD,
		e.TokensReceived,
		e.Price,
		e.Source,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert snipe event: %w", err)
	}

	trim := `
		DELETE FROM snipe_log
		WHERE id NOT IN (
			SELECT id FROM snipe_log ORDER BY id DESC LIMIT $1
		)
	`
	if _, err := tx.Exec(ctx, trim, domain.SnipeLogCap); err != nil {
		return fmt.Errorf("trim snipe log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Recent retrieves up to limit most recent events, oldest first. A
// non-positive limit returns everything retained.
func (s *SnipeLogStore) Recent(ctx context.Context, limit int) ([]domain.SnipeEvent, error) {
	if limit <= 0 {
		limit = domain.SnipeLogCap
	}

	query := `
		SELECT symbol, amount_sol, amount_usd, tokens_received, price, source, timestamp_ms
		FROM (
			SELECT * FROM snipe_log ORDER BY id DESC LIMIT $1
		) recent
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query snipe log: %w", err)
	}
	defer rows.Close()

	var events []domain.SnipeEvent
	for rows.Next() {
		var e domain.SnipeEvent
		err := rows.Scan(
			&e.Symbol,
			&e.AmountSOL,
			&e.AmountUSD,
			&e.TokensReceived,
			&e.Price,
			&e.Source,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snipe event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snipe event rows: %w", err)
	}
	return events, nil
}
