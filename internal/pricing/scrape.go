package pricing

import (
	"context"

	"snipetrader/internal/domain"
)

// PriceScraper asks the attached page session to scrape a price for a
// symbol from the currently rendered aggregator page. The session hub
// implements this by sending a scrape command to the in-page script.
type PriceScraper interface {
	ScrapePrice(ctx context.Context, symbol string) (float64, bool)
}

// PageScrape is the one strategy allowed to run with a truncated
// address or none at all: it keys on the symbol string, not the
// contract.
type PageScrape struct {
	scraper PriceScraper
}

// NewPageScrape builds the strategy. scraper may be nil when no page
// session exists; the strategy then reports no value.
func NewPageScrape(scraper PriceScraper) *PageScrape {
	return &PageScrape{scraper: scraper}
}

func (s *PageScrape) Name() string              { return domain.SourcePageScrape }
func (s *PageScrape) RequiresFullAddress() bool { return false }

func (s *PageScrape) Fetch(ctx context.Context, q Query) (Valuation, error) {
	if s.scraper == nil || q.Symbol == "" || q.Symbol == domain.SymbolUnknown {
		return Valuation{}, ErrNoValue
	}
	v, ok := s.scraper.ScrapePrice(ctx, q.Symbol)
	if !ok || v <= 0 {
		return Valuation{}, ErrNoValue
	}
	return MarketCapValuation(v), nil
}
