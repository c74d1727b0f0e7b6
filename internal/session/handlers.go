package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"snipetrader/internal/domain"
	"snipetrader/internal/observability"
	"snipetrader/internal/page"
	"snipetrader/internal/portfolio"
	"snipetrader/internal/reconcile"
)

// TokenExtractor turns a parsed page fragment into a TokenRecord,
// naming the fields that fell back to sentinels.
type TokenExtractor interface {
	Extract(ctx context.Context, root *page.Node) (rec domain.TokenRecord, fallbacks []string)
}

// AddressResolver upgrades a truncated or missing display address to a
// full one.
type AddressResolver interface {
	Resolve(truncated string, snap *page.Snapshot) (reconcile.Result, bool)
}

// Sniper is the portfolio surface the handlers call into.
type Sniper interface {
	Snipe(ctx context.Context, rec domain.TokenRecord, amountSOL float64, source string) (*portfolio.SnipeResult, error)
	Sell(ctx context.Context, symbol string, tokens float64) (remaining float64, err error)
	Holdings(ctx context.Context) ([]*domain.Holding, error)
	RecentSnipes(ctx context.Context, limit int) ([]domain.SnipeEvent, error)
}

// Tracker starts and stops recurring price refresh jobs.
type Tracker interface {
	StartTracking(symbol, contractAddress string)
	StopTracking(symbol string)
}

// ValuationFetcher runs the provider cascade for one token.
type ValuationFetcher interface {
	FetchValuation(ctx context.Context, symbol, contractAddress string) (value float64, source string, ok bool)
}

// SOLPricer reports the SOL/USD reference price.
type SOLPricer interface {
	Price(ctx context.Context) float64
}

// Deps are the collaborators RegisterHandlers binds the UI actions to.
type Deps struct {
	Extractor TokenExtractor
	Resolver  AddressResolver
	Ledger    Sniper
	Tracker   Tracker
	Fetcher   ValuationFetcher
	SOLPrice  SOLPricer
	Logger    *log.Logger
}

// RegisterHandlers binds every UI action to its domain operation.
// Mutating actions broadcast a portfolioUpdate after they commit.
func RegisterHandlers(hub *Hub, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	hub.Handle(ActionExtractToken, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var req ExtractRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode extract request: %w", err)
		}
		snap, err := page.Parse(req.Markup)
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		rec, fallbacks := deps.Extractor.Extract(ctx, snap.Root())
		observability.RecordExtraction(fallbacks...)
		if deps.Resolver != nil && !rec.HasFullAddress() {
			if res, found := deps.Resolver.Resolve(rec.ContractAddress, snap); found {
				rec.FullContractAddress = res.Address
				observability.RecordAddressUpgrade(res.Source)
				logger.Printf("session: resolved %q via %s", rec.ContractAddress, res.Source)
			}
		}
		return rec, nil
	})

	hub.Handle(ActionSnipeToken, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var req SnipeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode snipe request: %w", err)
		}
		result, err := deps.Ledger.Snipe(ctx, req.TokenData, req.AmountSOL, req.Source)
		if err != nil {
			return nil, err
		}
		observability.RecordSnipe()
		if deps.Tracker != nil {
			deps.Tracker.StartTracking(result.Symbol, req.TokenData.BestAddress())
		}
		broadcastPortfolio(ctx, hub, deps, logger)
		return result, nil
	})

	hub.Handle(ActionSellToken, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var req SellRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode sell request: %w", err)
		}
		remaining, err := deps.Ledger.Sell(ctx, req.Symbol, req.Tokens)
		if err != nil {
			return nil, err
		}
		observability.RecordSell()
		if remaining <= 0 && deps.Tracker != nil {
			deps.Tracker.StopTracking(req.Symbol)
		}
		broadcastPortfolio(ctx, hub, deps, logger)
		return SellResult{Symbol: req.Symbol, Remaining: remaining}, nil
	})

	hub.Handle(ActionGetPortfolioData, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		return portfolioData(ctx, deps)
	})

	hub.Handle(ActionInjectButtons, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var req InjectRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode inject request: %w", err)
		}
		snap, err := page.Parse(req.Markup)
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		controls := page.FindBuyControls(snap)
		ids := make([]string, 0, len(controls))
		for _, n := range controls {
			ids = append(ids, n.ID())
		}
		return InjectResult{NodeIDs: ids}, nil
	})

	hub.Handle(ActionScrapePrice, func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var req struct {
			Symbol          string `json:"symbol"`
			ContractAddress string `json:"contractAddress"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode scrape request: %w", err)
		}
		value, source, found := deps.Fetcher.FetchValuation(ctx, req.Symbol, req.ContractAddress)
		if !found {
			return nil, fmt.Errorf("no price available for %s", req.Symbol)
		}
		return struct {
			Price  float64 `json:"price"`
			Source string  `json:"source"`
		}{Price: value, Source: source}, nil
	})
}

func portfolioData(ctx context.Context, deps Deps) (PortfolioData, error) {
	holdings, err := deps.Ledger.Holdings(ctx)
	if err != nil {
		return PortfolioData{}, err
	}
	snipes, err := deps.Ledger.RecentSnipes(ctx, 0)
	if err != nil {
		return PortfolioData{}, err
	}
	out := PortfolioData{Holdings: holdings, RecentSnipes: snipes}
	if deps.SOLPrice != nil {
		out.SOLPriceUSD = deps.SOLPrice.Price(ctx)
	}
	return out, nil
}

func broadcastPortfolio(ctx context.Context, hub *Hub, deps Deps, logger *log.Logger) {
	data, err := portfolioData(ctx, deps)
	if err != nil {
		logger.Printf("session: portfolio broadcast skipped: %v", err)
		return
	}
	hub.Notify(BroadcastPortfolioUpdate, data)
}
