package memory

import (
	"context"
	"errors"
	"testing"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

func points(symbol string, timestamps ...int64) []*domain.PricePoint {
	out := make([]*domain.PricePoint, 0, len(timestamps))
	for _, ts := range timestamps {
		out = append(out, &domain.PricePoint{Symbol: symbol, Price: 21100, TimestampMs: ts})
	}
	return out
}

func TestPriceHistoryStore_InsertAndGet(t *testing.T) {
	s := NewPriceHistoryStore()
	ctx := context.Background()

	if err := s.InsertBulk(ctx, points("BNB", 300, 100, 200)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	s.InsertBulk(ctx, points("WIF", 100))

	got, err := s.GetBySymbol(ctx, "BNB")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	for i, ts := range []int64{100, 200, 300} {
		if got[i].TimestampMs != ts {
			t.Errorf("Position %d: expected ts %d, got %d", i, ts, got[i].TimestampMs)
		}
	}
}

func TestPriceHistoryStore_DuplicateFailsBatch(t *testing.T) {
	s := NewPriceHistoryStore()
	ctx := context.Background()

	s.InsertBulk(ctx, points("BNB", 100))

	err := s.InsertBulk(ctx, points("BNB", 200, 100))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The whole batch must be rejected.
	got, _ := s.GetBySymbol(ctx, "BNB")
	if len(got) != 1 {
		t.Errorf("Expected batch rollback, got %d points", len(got))
	}
}

func TestPriceHistoryStore_IntraBatchDuplicate(t *testing.T) {
	s := NewPriceHistoryStore()

	err := s.InsertBulk(context.Background(), points("BNB", 100, 100))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceHistoryStore_GetByTimeRange(t *testing.T) {
	s := NewPriceHistoryStore()
	ctx := context.Background()

	s.InsertBulk(ctx, points("BNB", 100, 200, 300, 400))

	got, err := s.GetByTimeRange(ctx, "BNB", 200, 300)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 || got[0].TimestampMs != 200 || got[1].TimestampMs != 300 {
		t.Errorf("Unexpected range result: %+v", got)
	}
}

func TestPriceHistoryStore_InsertInvalid(t *testing.T) {
	s := NewPriceHistoryStore()

	err := s.InsertBulk(context.Background(), []*domain.PricePoint{{TimestampMs: 100}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
