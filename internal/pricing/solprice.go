package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"snipetrader/internal/storage"
)

// DefaultSOLPriceUSD is the fallback reference price when no fetch has
// ever succeeded and nothing is persisted.
const DefaultSOLPriceUSD = 100.0

// defaultSOLPriceTTL bounds how long a fetched reference price is
// reused before refetching.
const defaultSOLPriceTTL = 5 * time.Minute

// SOLPriceOptions configures a SOLPriceCache.
type SOLPriceOptions struct {
	Client *Client

	// BaseURL is the CoinGecko API root. Defaults to the public API.
	BaseURL string

	// Store persists the last known price across restarts. Optional.
	Store storage.SettingsStore

	// TTL overrides the refetch interval.
	TTL time.Duration

	Logger *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SOLPriceCache serves the SOL/USD reference price used for snipe
// amount conversion and quote-relative market-cap approximation. Price
// never fails: a fetch error degrades to the persisted value, then to
// the default.
type SOLPriceCache struct {
	client  *Client
	baseURL string
	store   storage.SettingsStore
	ttl     time.Duration
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	value   float64
	fetched time.Time
}

// NewSOLPriceCache builds a cache from opts.
func NewSOLPriceCache(opts SOLPriceOptions) *SOLPriceCache {
	c := &SOLPriceCache{
		client:  opts.Client,
		baseURL: opts.BaseURL,
		store:   opts.Store,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if c.client == nil {
		c.client = NewClient()
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.coingecko.com/api/v3"
	}
	if c.ttl <= 0 {
		c.ttl = defaultSOLPriceTTL
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Price returns the current SOL/USD reference price.
func (c *SOLPriceCache) Price(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value > 0 && c.now().Sub(c.fetched) < c.ttl {
		return c.value
	}

	if v, err := c.fetch(ctx); err == nil && v > 0 {
		c.value = v
		c.fetched = c.now()
		if c.store != nil {
			if err := c.store.PutSOLPrice(ctx, v); err != nil {
				c.logger.Printf("solprice: persist failed: %v", err)
			}
		}
		return v
	} else if err != nil {
		c.logger.Printf("solprice: fetch failed, falling back: %v", err)
	}

	// Stale cache beats the default.
	if c.value > 0 {
		return c.value
	}
	if c.store != nil {
		if v, err := c.store.GetSOLPrice(ctx); err == nil && v > 0 {
			c.value = v
			c.fetched = c.now()
			return v
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.logger.Printf("solprice: load persisted price failed: %v", err)
		}
	}
	return DefaultSOLPriceUSD
}

func (c *SOLPriceCache) fetch(ctx context.Context) (float64, error) {
	var body struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	url := fmt.Sprintf("%s/simple/price?ids=solana&vs_currencies=usd", c.baseURL)
	if err := c.client.GetJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	if body.Solana.USD <= 0 {
		return 0, ErrNoValue
	}
	return body.Solana.USD, nil
}
