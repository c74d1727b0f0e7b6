package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"snipetrader/internal/domain"
)

// Default provider API roots.
const (
	DefaultPumpPortalURL  = "https://api.pumpportal.fun"
	DefaultJupiterURL     = "https://price.jup.ag/v4"
	DefaultPumpFunURL     = "https://frontend-api.pump.fun"
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	DefaultCoinGeckoURL   = "https://api.coingecko.com/api/v3"
)

// Query identifies the token a strategy should price.
type Query struct {
	Symbol          string
	ContractAddress string
	Kind            domain.AddressKind

	// FullAddress is true when ContractAddress is a complete, validated
	// address rather than truncated or absent.
	FullAddress bool
}

// Strategy is one provider in the cascade.
type Strategy interface {
	// Name identifies the strategy for attribution and logging.
	Name() string

	// RequiresFullAddress reports whether the strategy must be skipped,
	// without a network call, when no full address is available.
	RequiresFullAddress() bool

	// Fetch queries the provider and parses its response into a tagged
	// valuation. ErrNoValue means the response carried nothing usable.
	Fetch(ctx context.Context, q Query) (Valuation, error)
}

// PumpPortal prices Pump.fun tokens by contract address.
type PumpPortal struct {
	client  *Client
	baseURL string
}

// NewPumpPortal builds the strategy. An empty baseURL selects the
// public API.
func NewPumpPortal(client *Client, baseURL string) *PumpPortal {
	if baseURL == "" {
		baseURL = DefaultPumpPortalURL
	}
	return &PumpPortal{client: client, baseURL: baseURL}
}

func (p *PumpPortal) Name() string              { return domain.SourcePumpPortal }
func (p *PumpPortal) RequiresFullAddress() bool { return true }

func (p *PumpPortal) Fetch(ctx context.Context, q Query) (Valuation, error) {
	var body struct {
		USDMarketCap float64 `json:"usd_market_cap"`
		Price        float64 `json:"price"`
		Supply       float64 `json:"supply"`
	}
	url := fmt.Sprintf("%s/coin/%s", p.baseURL, q.ContractAddress)
	if err := p.client.GetJSON(ctx, url, &body); err != nil {
		return Valuation{}, err
	}
	if body.USDMarketCap > 0 {
		return MarketCapValuation(body.USDMarketCap), nil
	}
	if body.Price > 0 && body.Supply > 0 {
		return PriceAndSupplyValuation(body.Price, body.Supply), nil
	}
	return Valuation{}, ErrNoValue
}

// Healthy probes the provider's health endpoint, for the startup
// connectivity check.
func (p *PumpPortal) Healthy(ctx context.Context) bool {
	return p.client.Head(ctx, p.baseURL+"/health")
}

// Jupiter returns quote-relative unit prices for Solana mints.
type Jupiter struct {
	client  *Client
	baseURL string
}

// NewJupiter builds the strategy.
func NewJupiter(client *Client, baseURL string) *Jupiter {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	return &Jupiter{client: client, baseURL: baseURL}
}

func (j *Jupiter) Name() string              { return domain.SourceJupiter }
func (j *Jupiter) RequiresFullAddress() bool { return true }

func (j *Jupiter) Fetch(ctx context.Context, q Query) (Valuation, error) {
	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/price?ids=%s", j.baseURL, q.ContractAddress)
	if err := j.client.GetJSON(ctx, url, &body); err != nil {
		return Valuation{}, err
	}
	entry, ok := body.Data[q.ContractAddress]
	if !ok || entry.Price <= 0 {
		return Valuation{}, ErrNoValue
	}
	return PriceValuation(entry.Price, true), nil
}

// PumpFun queries the Pump.fun frontend API directly.
type PumpFun struct {
	client  *Client
	baseURL string
}

// NewPumpFun builds the strategy.
func NewPumpFun(client *Client, baseURL string) *PumpFun {
	if baseURL == "" {
		baseURL = DefaultPumpFunURL
	}
	return &PumpFun{client: client, baseURL: baseURL}
}

func (p *PumpFun) Name() string              { return domain.SourcePumpFun }
func (p *PumpFun) RequiresFullAddress() bool { return true }

func (p *PumpFun) Fetch(ctx context.Context, q Query) (Valuation, error) {
	var body struct {
		USDMarketCap float64 `json:"usd_market_cap"`
	}
	url := fmt.Sprintf("%s/coins/%s", p.baseURL, q.ContractAddress)
	if err := p.client.GetJSON(ctx, url, &body); err != nil {
		return Valuation{}, err
	}
	if body.USDMarketCap <= 0 {
		return Valuation{}, ErrNoValue
	}
	return MarketCapValuation(body.USDMarketCap), nil
}

// DexScreener prices tokens from their most liquid pair.
type DexScreener struct {
	client  *Client
	baseURL string
}

// NewDexScreener builds the strategy.
func NewDexScreener(client *Client, baseURL string) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreener{client: client, baseURL: baseURL}
}

func (d *DexScreener) Name() string              { return domain.SourceDexScreener }
func (d *DexScreener) RequiresFullAddress() bool { return true }

func (d *DexScreener) Fetch(ctx context.Context, q Query) (Valuation, error) {
	// priceUsd arrives as a JSON string.
	var body struct {
		Pairs []struct {
			PriceUSD string  `json:"priceUsd"`
			FDV      float64 `json:"fdv"`
		} `json:"pairs"`
	}
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, q.ContractAddress)
	if err := d.client.GetJSON(ctx, url, &body); err != nil {
		return Valuation{}, err
	}
	if len(body.Pairs) == 0 {
		return Valuation{}, ErrNoValue
	}
	pair := body.Pairs[0]
	if p, err := strconv.ParseFloat(pair.PriceUSD, 64); err == nil && p > 0 {
		return PriceValuation(p, false), nil
	}
	if pair.FDV > 0 {
		return MarketCapValuation(pair.FDV), nil
	}
	return Valuation{}, ErrNoValue
}

// CoinGecko resolves well-known tokens by symbol; the last resort of
// the cascade and the only strategy besides the page scrape that works
// without an address.
type CoinGecko struct {
	client  *Client
	baseURL string
}

// NewCoinGecko builds the strategy.
func NewCoinGecko(client *Client, baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGecko{client: client, baseURL: baseURL}
}

func (c *CoinGecko) Name() string              { return domain.SourceCoinGecko }
func (c *CoinGecko) RequiresFullAddress() bool { return false }

func (c *CoinGecko) Fetch(ctx context.Context, q Query) (Valuation, error) {
	if q.Symbol == "" || q.Symbol == domain.SymbolUnknown {
		return Valuation{}, ErrNoValue
	}
	id := strings.ToLower(q.Symbol)
	var body map[string]struct {
		USD          float64 `json:"usd"`
		USDMarketCap float64 `json:"usd_market_cap"`
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_market_cap=true", c.baseURL, id)
	if err := c.client.GetJSON(ctx, url, &body); err != nil {
		return Valuation{}, err
	}
	entry, ok := body[id]
	if !ok || entry.USDMarketCap <= 0 {
		return Valuation{}, ErrNoValue
	}
	return MarketCapValuation(entry.USDMarketCap), nil
}
