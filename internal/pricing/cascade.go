package pricing

import (
	"context"
	"errors"
	"log"

	"snipetrader/internal/domain"
)

// Recorder observes cascade behavior, implemented by the metrics layer.
type Recorder interface {
	ObserveAttempt(strategy string)
	ObserveFailure(strategy string)
	ObserveSuccess(strategy string)
	ObserveExhausted()
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string) {}
func (nopRecorder) ObserveFailure(string) {}
func (nopRecorder) ObserveSuccess(string) {}
func (nopRecorder) ObserveExhausted()     {}

// CascadeOptions configures a Cascade.
type CascadeOptions struct {
	// Strategies in attempt order.
	Strategies []Strategy

	// SOLPrice supplies the reference price for quote-relative
	// valuations. Defaults to an unpersisted cache.
	SOLPrice *SOLPriceCache

	Logger  *log.Logger
	Metrics Recorder
}

// Cascade tries provider strategies strictly in sequence; the first one
// producing a strictly positive USD valuation wins and later strategies
// are never invoked. Strategy failures are logged and swallowed; a
// failure in one strategy never aborts the rest.
type Cascade struct {
	strategies []Strategy
	solPrice   *SOLPriceCache
	logger     *log.Logger
	metrics    Recorder
}

// NewCascade builds a cascade from opts.
func NewCascade(opts CascadeOptions) *Cascade {
	c := &Cascade{
		strategies: opts.Strategies,
		solPrice:   opts.SOLPrice,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if c.solPrice == nil {
		c.solPrice = NewSOLPriceCache(SOLPriceOptions{})
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	return c
}

// FetchValuation resolves a USD valuation for the token. source names
// the winning strategy. ok is false when every strategy was skipped,
// failed, or reported no value; callers treat that as "no update
// available", not an error.
//
// Strategies that require a full address are skipped without a network
// call when the address is truncated, absent, or of unknown kind.
func (c *Cascade) FetchValuation(ctx context.Context, symbol, contractAddress string) (value float64, source string, ok bool) {
	q := Query{
		Symbol:          symbol,
		ContractAddress: contractAddress,
		Kind:            domain.ClassifyAddress(contractAddress),
		FullAddress:     domain.IsFullAddress(contractAddress),
	}

	for _, s := range c.strategies {
		if s.RequiresFullAddress() && !q.FullAddress {
			continue
		}
		c.metrics.ObserveAttempt(s.Name())

		v, err := c.fetchOne(ctx, s, q)
		if err != nil {
			if !errors.Is(err, ErrNoValue) {
				c.logger.Printf("pricing: %s failed for %s: %v", s.Name(), symbol, err)
			}
			c.metrics.ObserveFailure(s.Name())
			continue
		}

		usd, positive := v.USD(c.solPrice.Price(ctx))
		if !positive {
			c.metrics.ObserveFailure(s.Name())
			continue
		}
		c.metrics.ObserveSuccess(s.Name())
		return usd, s.Name(), true
	}

	c.metrics.ObserveExhausted()
	return 0, "", false
}

// fetchOne isolates a single strategy call, turning panics into errors
// so one misbehaving provider cannot take down a refresh job.
func (c *Cascade) fetchOne(ctx context.Context, s Strategy, q Query) (v Valuation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("strategy panicked")
			c.logger.Printf("pricing: %s panicked for %s: %v", s.Name(), q.Symbol, r)
		}
	}()
	return s.Fetch(ctx, q)
}
