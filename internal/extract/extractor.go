package extract

import (
	"context"
	"log"
	"time"

	"snipetrader/internal/domain"
	"snipetrader/internal/page"
)

// Options configures an Extractor.
type Options struct {
	// Prober resolves full addresses through simulated copy clicks. May
	// be nil when no live page session is attached.
	Prober CopyProber

	// Logger receives per-pass diagnostics. Defaults to the standard
	// logger when nil.
	Logger *log.Logger

	// Now overrides the record timestamp clock, for tests.
	Now func() time.Time
}

// Extractor turns a page fragment into a TokenRecord. Extraction never
// fails: fields that resolve keep their values, fields that do not keep
// their sentinels.
type Extractor struct {
	prober CopyProber
	logger *log.Logger
	now    func() time.Time
}

// NewExtractor builds an Extractor from opts.
func NewExtractor(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{prober: opts.Prober, logger: logger, now: now}
}

// Extract resolves symbol, contract address and valuation from the
// fragment rooted at root. The three cascades are independent: a missing
// address does not degrade the symbol, and vice versa. Calling Extract
// twice on the same static fragment yields the same record apart from
// the timestamp.
//
// fallbacks names the fields whose cascade produced nothing and which
// therefore kept their sentinels. It is the cascade outcome, not an
// inference from the record: a genuinely extracted value equal to a
// sentinel is not a fallback.
func (e *Extractor) Extract(ctx context.Context, root *page.Node) (rec domain.TokenRecord, fallbacks []string) {
	rec = domain.TokenRecord{
		Symbol:    domain.SymbolUnknown,
		Price:     domain.DefaultTokenPrice,
		Source:    domain.SourceDOMExtract,
		Timestamp: e.now().UnixMilli(),
	}
	if root == nil {
		return rec, []string{"symbol", "address", "price"}
	}

	symbol, ok := e.resolveField("symbol", func() (string, bool) {
		s := resolveSymbol(root)
		return s, s != domain.SymbolUnknown
	})
	if ok {
		rec.Symbol = symbol
	} else {
		fallbacks = append(fallbacks, "symbol")
	}

	addr := e.resolveAddressField(ctx, root)
	rec.ContractAddress = addr.address
	if addr.full {
		rec.FullContractAddress = addr.address
	}
	if addr.address == "" {
		fallbacks = append(fallbacks, "address")
	}

	if v, ok := e.resolvePriceField(root); ok {
		rec.Price = v
	} else {
		fallbacks = append(fallbacks, "price")
	}
	return rec, fallbacks
}

// resolveField runs fn under a panic guard so one misbehaving cascade
// cannot take down the whole extraction.
func (e *Extractor) resolveField(name string, fn func() (string, bool)) (out string, resolved bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("extract: %s cascade panicked: %v", name, r)
			out, resolved = "", false
		}
	}()
	return fn()
}

func (e *Extractor) resolveAddressField(ctx context.Context, root *page.Node) (out addressResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("extract: address cascade panicked: %v", r)
			out = addressResult{}
		}
	}()
	return resolveAddress(ctx, root, e.prober)
}

func (e *Extractor) resolvePriceField(root *page.Node) (v float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("extract: price cascade panicked: %v", r)
			v, ok = 0, false
		}
	}()
	return resolvePrice(root)
}
