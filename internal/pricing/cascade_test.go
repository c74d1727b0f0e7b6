package pricing

import (
	"context"
	"errors"
	"testing"
	"time"
)

const (
	fullAddr      = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	truncatedAddr = "Ck5D...BAGS"
)

// fakeStrategy is a scriptable provider for cascade tests.
type fakeStrategy struct {
	name         string
	requiresFull bool
	result       Valuation
	err          error
	panics       bool
	calls        int
}

func (f *fakeStrategy) Name() string              { return f.name }
func (f *fakeStrategy) RequiresFullAddress() bool { return f.requiresFull }

func (f *fakeStrategy) Fetch(_ context.Context, _ Query) (Valuation, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

// fixedSOLPrice returns a cache pre-seeded so no fetch ever happens.
func fixedSOLPrice(usd float64) *SOLPriceCache {
	c := NewSOLPriceCache(SOLPriceOptions{})
	c.value = usd
	c.fetched = time.Now()
	return c
}

func newTestCascade(strategies ...Strategy) *Cascade {
	return NewCascade(CascadeOptions{
		Strategies: strategies,
		SOLPrice:   fixedSOLPrice(150),
	})
}

func TestFetchValuation_ShortCircuit(t *testing.T) {
	s1 := &fakeStrategy{name: "one", err: errors.New("network down")}
	s2 := &fakeStrategy{name: "two", result: MarketCapValuation(21100)}
	s3 := &fakeStrategy{name: "three", result: MarketCapValuation(99999)}
	c := newTestCascade(s1, s2, s3)

	v, source, ok := c.FetchValuation(context.Background(), "BNB", fullAddr)
	if !ok {
		t.Fatal("Expected a valuation")
	}
	if v != 21100 {
		t.Errorf("Expected 21100, got %v", v)
	}
	if source != "two" {
		t.Errorf("Expected source two, got %s", source)
	}
	if s1.calls != 1 || s2.calls != 1 {
		t.Errorf("Expected one call each to s1 and s2, got %d and %d", s1.calls, s2.calls)
	}
	if s3.calls != 0 {
		t.Errorf("Winning strategy must stop the cascade; s3 called %d times", s3.calls)
	}
}

func TestFetchValuation_TruncatedAddressGuard(t *testing.T) {
	needsFull := &fakeStrategy{name: "needs-full", requiresFull: true, result: MarketCapValuation(500)}
	scrape := &fakeStrategy{name: "scrape", result: MarketCapValuation(21100)}
	c := newTestCascade(needsFull, scrape)

	v, source, ok := c.FetchValuation(context.Background(), "BNB", truncatedAddr)
	if !ok || v != 21100 || source != "scrape" {
		t.Fatalf("Expected scrape result, got v=%v source=%s ok=%v", v, source, ok)
	}
	if needsFull.calls != 0 {
		t.Errorf("Full-address strategy must be skipped without a network call, got %d calls", needsFull.calls)
	}
}

func TestFetchValuation_NoAddress(t *testing.T) {
	needsFull := &fakeStrategy{name: "needs-full", requiresFull: true, result: MarketCapValuation(500)}
	c := newTestCascade(needsFull)

	if _, _, ok := c.FetchValuation(context.Background(), "BNB", ""); ok {
		t.Error("Expected exhaustion with no runnable strategies")
	}
	if needsFull.calls != 0 {
		t.Errorf("Expected no calls, got %d", needsFull.calls)
	}
}

func TestFetchValuation_Exhausted(t *testing.T) {
	s1 := &fakeStrategy{name: "one", err: errors.New("boom")}
	s2 := &fakeStrategy{name: "two", err: ErrNoValue}
	c := newTestCascade(s1, s2)

	if _, _, ok := c.FetchValuation(context.Background(), "BNB", fullAddr); ok {
		t.Error("Expected no valuation after exhaustion")
	}
	if s1.calls != 1 || s2.calls != 1 {
		t.Errorf("Every strategy should have been attempted, got %d and %d", s1.calls, s2.calls)
	}
}

func TestFetchValuation_PanicIsolated(t *testing.T) {
	s1 := &fakeStrategy{name: "one", panics: true}
	s2 := &fakeStrategy{name: "two", result: MarketCapValuation(42000)}
	c := newTestCascade(s1, s2)

	v, _, ok := c.FetchValuation(context.Background(), "BNB", fullAddr)
	if !ok || v != 42000 {
		t.Errorf("Expected s2 to win after s1 panicked, got v=%v ok=%v", v, ok)
	}
}

func TestFetchValuation_NonPositiveSkipped(t *testing.T) {
	s1 := &fakeStrategy{name: "one", result: MarketCapValuation(0)}
	s2 := &fakeStrategy{name: "two", result: MarketCapValuation(1500)}
	c := newTestCascade(s1, s2)

	v, source, ok := c.FetchValuation(context.Background(), "BNB", fullAddr)
	if !ok || v != 1500 || source != "two" {
		t.Errorf("Expected s2's positive value, got v=%v source=%s ok=%v", v, source, ok)
	}
}

func TestFetchValuation_QuoteRelativeConversion(t *testing.T) {
	// 0.00005 SOL/token at 150 USD/SOL over the assumed supply.
	s := &fakeStrategy{name: "jupiter-like", result: PriceValuation(0.00005, true)}
	c := newTestCascade(s)

	v, _, ok := c.FetchValuation(context.Background(), "BNB", fullAddr)
	if !ok {
		t.Fatal("Expected a valuation")
	}
	want := 0.00005 * 150 * assumedSupply
	if v != want {
		t.Errorf("Expected %v, got %v", want, v)
	}
}

func TestValuationUSD(t *testing.T) {
	cases := []struct {
		name string
		v    Valuation
		ref  float64
		want float64
		ok   bool
	}{
		{"market cap", MarketCapValuation(21100), 100, 21100, true},
		{"price and supply", PriceAndSupplyValuation(0.002, 1e9), 100, 2e6, true},
		{"usd price", PriceValuation(0.5, false), 100, 0.5, true},
		{"quote price", PriceValuation(0.001, true), 100, 0.001 * 100 * assumedSupply, true},
		{"zero", MarketCapValuation(0), 100, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.v.USD(tc.ref)
			if got != tc.want || ok != tc.ok {
				t.Errorf("USD() = %v, %v; want %v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}
