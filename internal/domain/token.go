package domain

// Extraction sentinels. A field that no pattern resolved keeps its
// sentinel rather than failing the whole record.
const (
	// SymbolUnknown is the symbol sentinel for unresolved tickers.
	SymbolUnknown = "UNKNOWN"
	// DefaultTokenPrice is the conventional "very small memecoin" price
	// used when no price pattern matched at extraction time. It is never
	// used for provider misses; those report an explicit absence.
	DefaultTokenPrice = 0.000001
)

// Extraction and fetch source names, attached to records for provider
// attribution.
const (
	SourcePumpPortal  = "pumpportal"
	SourcePumpFun     = "pumpfun"
	SourceJupiter     = "jupiter"
	SourceDexScreener = "dexscreener"
	SourceCoinGecko   = "coingecko"
	SourcePageScrape  = "web-scraping"
	SourceClipboard   = "clipboard"
	SourceDOMExtract  = "dom-extract"
)

// TokenRecord is the unit of extraction output: the best-effort
// (symbol, contract address, valuation) triple recovered from a page
// fragment around a buy control.
type TokenRecord struct {
	// Symbol is the uppercase ticker, 2-10 chars, or SymbolUnknown.
	Symbol string `json:"symbol"`

	// ContractAddress is either a full on-chain address or a truncated
	// first4...last4 display form. Empty when nothing matched.
	ContractAddress string `json:"contractAddress,omitempty"`

	// FullContractAddress is set only once a complete address has been
	// confirmed, so a truncated entry can be upgraded in place.
	FullContractAddress string `json:"fullContractAddress,omitempty"`

	// Price is a USD valuation: a market capitalization when a market-cap
	// pattern matched, otherwise a unit price. DefaultTokenPrice when
	// nothing matched.
	Price float64 `json:"price"`

	// Source names the strategy that produced the record.
	Source string `json:"source"`

	// Timestamp is the capture time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// HasFullAddress reports whether the record carries a confirmed complete
// contract address.
func (r *TokenRecord) HasFullAddress() bool {
	return r.FullContractAddress != ""
}

// BestAddress returns the full contract address when known, otherwise
// the (possibly truncated) extracted one.
func (r *TokenRecord) BestAddress() string {
	if r.FullContractAddress != "" {
		return r.FullContractAddress
	}
	return r.ContractAddress
}
