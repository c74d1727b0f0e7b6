package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snipetrader/internal/storage"
)

// fakeSettingsStore implements storage.SettingsStore in memory.
type fakeSettingsStore struct {
	settings *storage.Settings
	solPrice float64
	hasPrice bool
}

func (s *fakeSettingsStore) GetSettings(context.Context) (*storage.Settings, error) {
	if s.settings == nil {
		return nil, storage.ErrNotFound
	}
	return s.settings, nil
}

func (s *fakeSettingsStore) PutSettings(_ context.Context, in *storage.Settings) error {
	s.settings = in
	return nil
}

func (s *fakeSettingsStore) GetSOLPrice(context.Context) (float64, error) {
	if !s.hasPrice {
		return 0, storage.ErrNotFound
	}
	return s.solPrice, nil
}

func (s *fakeSettingsStore) PutSOLPrice(_ context.Context, price float64) error {
	s.solPrice = price
	s.hasPrice = true
	return nil
}

func TestSOLPrice_FetchAndCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(`{"solana": {"usd": 142.5}}`))
	}))
	defer srv.Close()

	store := &fakeSettingsStore{}
	cache := NewSOLPriceCache(SOLPriceOptions{BaseURL: srv.URL, Store: store})

	if v := cache.Price(context.Background()); v != 142.5 {
		t.Errorf("Expected 142.5, got %v", v)
	}
	if v := cache.Price(context.Background()); v != 142.5 {
		t.Errorf("Expected cached 142.5, got %v", v)
	}
	if hits != 1 {
		t.Errorf("Expected a single upstream fetch, got %d", hits)
	}
	if !store.hasPrice || store.solPrice != 142.5 {
		t.Errorf("Expected price persisted, got %+v", store)
	}
}

func TestSOLPrice_TTLExpiryRefetches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(`{"solana": {"usd": 142.5}}`))
	}))
	defer srv.Close()

	now := time.Now()
	cache := NewSOLPriceCache(SOLPriceOptions{
		BaseURL: srv.URL,
		TTL:     time.Minute,
		Now:     func() time.Time { return now },
	})

	cache.Price(context.Background())
	now = now.Add(2 * time.Minute)
	cache.Price(context.Background())

	if hits != 2 {
		t.Errorf("Expected refetch after TTL, got %d hits", hits)
	}
}

func TestSOLPrice_DefaultOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewSOLPriceCache(SOLPriceOptions{BaseURL: srv.URL})

	if v := cache.Price(context.Background()); v != DefaultSOLPriceUSD {
		t.Errorf("Expected default %v, got %v", DefaultSOLPriceUSD, v)
	}
}

func TestSOLPrice_PersistedBeatsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &fakeSettingsStore{solPrice: 133, hasPrice: true}
	cache := NewSOLPriceCache(SOLPriceOptions{BaseURL: srv.URL, Store: store})

	if v := cache.Price(context.Background()); v != 133 {
		t.Errorf("Expected persisted 133, got %v", v)
	}
}

func TestSOLPrice_StaleCacheBeatsDefault(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"solana": {"usd": 142.5}}`))
	}))
	defer srv.Close()

	now := time.Now()
	cache := NewSOLPriceCache(SOLPriceOptions{
		BaseURL: srv.URL,
		TTL:     time.Minute,
		Now:     func() time.Time { return now },
	})

	cache.Price(context.Background())
	healthy = false
	now = now.Add(2 * time.Minute)

	if v := cache.Price(context.Background()); v != 142.5 {
		t.Errorf("Expected stale cached price, got %v", v)
	}
}
