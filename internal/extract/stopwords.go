// Package extract recovers best-effort (symbol, contract address,
// valuation) triples from DOM fragments around buy controls. Every field
// is resolved by an ordered list of pattern passes; the first pass that
// yields a validated candidate wins, and failures degrade to sentinels
// instead of errors.
package extract

import "strings"

// stopwords are UI chrome strings that look like tickers but never are.
// A candidate matching any of these is rejected at every pass.
var stopwords = map[string]struct{}{
	"BUY": {}, "SELL": {}, "TRADE": {}, "SOL": {}, "USD": {}, "USDC": {},
	"MC": {}, "VOL": {}, "P": {}, "Q": {}, "DS": {}, "TX": {},
	"PRICE": {}, "AMOUNT": {}, "CONTRACT": {}, "ADDRESS": {}, "TOKEN": {},
	"PAIR": {}, "MARKET": {}, "VOLUME": {}, "LIQUIDITY": {}, "HOLDERS": {},
	"SUPPLY": {}, "CAP": {}, "CHANGE": {}, "PERCENT": {}, "TOTAL": {},
	"VALUE": {},
}

// isStopword reports whether the candidate is UI chrome rather than a
// plausible ticker. Matching is case-insensitive.
func isStopword(s string) bool {
	_, ok := stopwords[strings.ToUpper(s)]
	return ok
}
