package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

func testPoint(symbol string, ts int64, price float64) *domain.PricePoint {
	return &domain.PricePoint{
		Symbol:          symbol,
		ContractAddress: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		TimestampMs:     ts,
		Price:           price,
		Source:          "pumpportal",
	}
}

func TestPriceHistoryStore_InsertAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	points := []*domain.PricePoint{
		testPoint("PEPE", 1724912345000, 21100),
		testPoint("PEPE", 1724912375000, 21500),
		testPoint("WIF", 1724912345000, 89000),
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetBySymbol(ctx, "PEPE")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1724912345000), got[0].TimestampMs)
	require.Equal(t, 21100.0, got[0].Price)
	require.Equal(t, int64(1724912375000), got[1].TimestampMs)
}

func TestPriceHistoryStore_DuplicateFailsBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		testPoint("PEPE", 1724912345000, 21100),
	}))

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		testPoint("PEPE", 1724912375000, 21500),
		testPoint("PEPE", 1724912345000, 21100),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The whole batch is rejected, including the fresh point.
	got, err := store.GetBySymbol(ctx, "PEPE")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestPriceHistoryStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPriceHistoryStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.PricePoint{
		testPoint("PEPE", 1724912345000, 21100),
		testPoint("PEPE", 1724912345000, 21200),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceHistoryStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		testPoint("PEPE", 1000, 1),
		testPoint("PEPE", 2000, 2),
		testPoint("PEPE", 3000, 3),
	}))

	got, err := store.GetByTimeRange(ctx, "PEPE", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1.0, got[0].Price)
	require.Equal(t, 2.0, got[1].Price)
}

func TestPriceHistoryStore_InsertInvalid(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPriceHistoryStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.PricePoint{
		{TimestampMs: 1000, Price: 1},
	})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
