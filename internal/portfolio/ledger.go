// Package portfolio implements the paper-trade ledger: snipes merge
// into per-symbol holdings with running weighted-average cost basis,
// sells reduce positions, and contract addresses only ever upgrade from
// truncated to full.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"snipetrader/internal/domain"
	"snipetrader/internal/storage"
)

// DefaultSnipeAmountSOL is used when a snipe arrives without an amount.
const DefaultSnipeAmountSOL = 0.1

// SOLPricer supplies the SOL/USD reference price for snipe conversion.
// Implemented by the pricing SOL price cache.
type SOLPricer interface {
	Price(ctx context.Context) float64
}

// SnipeResult summarizes an executed snipe, feeding the
// portfolioUpdate broadcast.
type SnipeResult struct {
	Symbol       string  `json:"symbol"`
	TokensBought float64 `json:"tokensToBuy"`
	AmountSOL    float64 `json:"snipeAmountSOL"`
	AmountUSD    float64 `json:"snipeAmountUSD"`
}

// Options configures a Ledger.
type Options struct {
	Holdings storage.HoldingStore
	SnipeLog storage.SnipeLogStore
	SOLPrice SOLPricer
	Logger   *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Ledger owns all writes to the persisted portfolio.
type Ledger struct {
	holdings storage.HoldingStore
	snipeLog storage.SnipeLogStore
	solPrice SOLPricer
	logger   *log.Logger
	now      func() time.Time
}

// NewLedger builds a Ledger from opts.
func NewLedger(opts Options) *Ledger {
	l := &Ledger{
		holdings: opts.Holdings,
		snipeLog: opts.SnipeLog,
		solPrice: opts.SOLPrice,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Snipe merges an extracted token record into the portfolio as a
// simulated buy of amountSOL. A zero amount falls back to the default;
// a negative amount is rejected. The token quantity is the snipe's USD
// value divided by the token price.
func (l *Ledger) Snipe(ctx context.Context, rec domain.TokenRecord, amountSOL float64, source string) (*SnipeResult, error) {
	if amountSOL < 0 {
		return nil, fmt.Errorf("%w: negative snipe amount %v", storage.ErrInvalidInput, amountSOL)
	}
	if amountSOL == 0 {
		amountSOL = DefaultSnipeAmountSOL
	}

	symbol := rec.Symbol
	if symbol == "" {
		symbol = domain.SymbolUnknown
	}
	price := rec.Price
	if price <= 0 {
		price = domain.DefaultTokenPrice
	}
	if source == "" {
		source = rec.Source
	}

	amountUSD := amountSOL * l.solPrice.Price(ctx)
	tokens := amountUSD / price
	nowMs := l.now().UnixMilli()

	h, err := l.holdings.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load holding %s: %w", symbol, err)
		}
		h = &domain.Holding{
			Symbol:    symbol,
			Source:    source,
			FirstSeen: nowMs,
			LastPrice: price,
		}
	}

	applyAddress(h, &rec)

	h.Amount += tokens
	h.TotalInvested += amountUSD
	h.AvgPrice = h.TotalInvested / h.Amount
	h.LastPrice = price

	event := domain.SnipeEvent{
		Symbol:         symbol,
		AmountSOL:      amountSOL,
		AmountUSD:      amountUSD,
		TokensReceived: tokens,
		Price:          price,
		Source:         source,
		Timestamp:      nowMs,
	}
	h.AppendSnipe(event)

	if err := l.holdings.Put(ctx, h); err != nil {
		return nil, fmt.Errorf("store holding %s: %w", symbol, err)
	}
	if l.snipeLog != nil {
		if err := l.snipeLog.Append(ctx, event); err != nil {
			l.logger.Printf("portfolio: snipe log append failed for %s: %v", symbol, err)
		}
	}

	l.logger.Printf("portfolio: sniped %.6f %s for %v SOL ($%.2f) at %v",
		tokens, symbol, amountSOL, amountUSD, price)
	return &SnipeResult{
		Symbol:       symbol,
		TokensBought: tokens,
		AmountSOL:    amountSOL,
		AmountUSD:    amountUSD,
	}, nil
}

// applyAddress writes the record's address onto the holding under the
// non-regression rule: a stored full address is never overwritten by a
// truncated one.
func applyAddress(h *domain.Holding, rec *domain.TokenRecord) {
	if rec.HasFullAddress() {
		h.FullContractAddress = rec.FullContractAddress
		h.ContractAddress = rec.FullContractAddress
		return
	}
	if rec.ContractAddress == "" || h.FullContractAddress != "" {
		return
	}
	if h.ContractAddress == "" {
		h.ContractAddress = rec.ContractAddress
	}
}

// UpgradeAddress records a reconciled full address for a symbol.
func (l *Ledger) UpgradeAddress(ctx context.Context, symbol, fullAddress string) error {
	if symbol == "" || fullAddress == "" || domain.IsTruncatedAddress(fullAddress) {
		return fmt.Errorf("%w: bad address upgrade %q", storage.ErrInvalidInput, fullAddress)
	}
	h, err := l.holdings.Get(ctx, symbol)
	if err != nil {
		return err
	}
	h.FullContractAddress = fullAddress
	h.ContractAddress = fullAddress
	return l.holdings.Put(ctx, h)
}

// Sell reduces a position by tokens. The whole holding is removed when
// it reaches zero. remaining reports the tokens left.
func (l *Ledger) Sell(ctx context.Context, symbol string, tokens float64) (remaining float64, err error) {
	if symbol == "" || tokens <= 0 {
		return 0, fmt.Errorf("%w: bad sell of %v %s", storage.ErrInvalidInput, tokens, symbol)
	}
	h, err := l.holdings.Get(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if tokens > h.Amount {
		return h.Amount, fmt.Errorf("%w: selling %v exceeds held %v", storage.ErrInvalidInput, tokens, h.Amount)
	}

	h.Amount -= tokens
	if h.Amount <= 0 {
		if err := l.holdings.Delete(ctx, symbol); err != nil {
			return 0, fmt.Errorf("close holding %s: %w", symbol, err)
		}
		l.logger.Printf("portfolio: closed %s", symbol)
		return 0, nil
	}
	if err := l.holdings.Put(ctx, h); err != nil {
		return 0, fmt.Errorf("store holding %s: %w", symbol, err)
	}
	l.logger.Printf("portfolio: sold %.6f %s, %.6f left", tokens, symbol, h.Amount)
	return h.Amount, nil
}

// Holdings returns the full portfolio, ordered by symbol.
func (l *Ledger) Holdings(ctx context.Context) ([]*domain.Holding, error) {
	return l.holdings.List(ctx)
}

// RecentSnipes returns up to limit entries from the global snipe log,
// oldest first.
func (l *Ledger) RecentSnipes(ctx context.Context, limit int) ([]domain.SnipeEvent, error) {
	if l.snipeLog == nil {
		return nil, nil
	}
	return l.snipeLog.Recent(ctx, limit)
}
