// Package pricing implements the sequential price-source cascade:
// provider strategies tried in a fixed order, first strictly-positive
// valuation wins. Provider responses are parsed into tagged variants
// and reduced to a canonical USD figure at the provider boundary.
package pricing

import "errors"

// ErrNoValue reports that a provider responded but carried no usable
// valuation field. It is a normal cascade outcome, not a fault.
var ErrNoValue = errors.New("pricing: no usable value in provider response")

// ValuationKind tags which fields of a provider response produced the
// figure.
type ValuationKind string

const (
	// ValuationMarketCap is a direct USD market capitalization.
	ValuationMarketCap ValuationKind = "marketCap"
	// ValuationPriceAndSupply is a unit price multiplied by supply.
	ValuationPriceAndSupply ValuationKind = "priceAndSupply"
	// ValuationPrice is a bare unit price; quote-relative prices are
	// converted with the reference-asset USD price and an assumed
	// supply to approximate a market cap.
	ValuationPrice ValuationKind = "price"
)

// assumedSupply approximates circulating supply for providers that only
// return a quote-relative unit price.
const assumedSupply = 1_000_000

// Valuation is a tagged provider result.
type Valuation struct {
	Kind          ValuationKind
	marketCap     float64
	price         float64
	supply        float64
	quoteRelative bool
}

// MarketCapValuation tags a direct USD market cap.
func MarketCapValuation(usd float64) Valuation {
	return Valuation{Kind: ValuationMarketCap, marketCap: usd}
}

// PriceAndSupplyValuation tags a unit price with a known supply.
func PriceAndSupplyValuation(price, supply float64) Valuation {
	return Valuation{Kind: ValuationPriceAndSupply, price: price, supply: supply}
}

// PriceValuation tags a bare unit price. quoteRelative marks prices
// denominated in the reference asset rather than USD.
func PriceValuation(price float64, quoteRelative bool) Valuation {
	return Valuation{Kind: ValuationPrice, price: price, quoteRelative: quoteRelative}
}

// USD reduces the variant to the canonical USD figure. refPriceUSD is
// the reference-asset (SOL) USD price, used only for quote-relative
// prices. ok is false when the figure is not strictly positive.
func (v Valuation) USD(refPriceUSD float64) (float64, bool) {
	var out float64
	switch v.Kind {
	case ValuationMarketCap:
		out = v.marketCap
	case ValuationPriceAndSupply:
		out = v.price * v.supply
	case ValuationPrice:
		if v.quoteRelative {
			out = v.price * refPriceUSD * assumedSupply
		} else {
			out = v.price
		}
	}
	return out, out > 0
}
