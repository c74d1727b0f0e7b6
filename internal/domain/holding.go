package domain

// SnipeHistoryCap bounds the per-holding snipe history; the oldest entry
// is evicted first.
const SnipeHistoryCap = 10

// SnipeLogCap bounds the global snipe log.
const SnipeLogCap = 50

// SnipeEvent records one simulated buy against a holding.
type SnipeEvent struct {
	Symbol         string  `json:"symbol"`
	AmountSOL      float64 `json:"amountSOL"`
	AmountUSD      float64 `json:"amountUSD"`
	TokensReceived float64 `json:"tokensReceived"`
	Price          float64 `json:"price"`
	Source         string  `json:"source"`
	Timestamp      int64   `json:"timestamp"`
}

// Holding is the per-symbol aggregate position. Cost-basis fields are
// running weighted averages; Amount only decreases on an explicit sell.
type Holding struct {
	Symbol string `json:"symbol"`

	// ContractAddress may be truncated. FullContractAddress, once set,
	// is never overwritten with a truncated value.
	ContractAddress     string `json:"contractAddress,omitempty"`
	FullContractAddress string `json:"fullContractAddress,omitempty"`

	Amount        float64 `json:"amount"`
	AvgPrice      float64 `json:"avgPrice"`
	TotalInvested float64 `json:"totalInvested"`
	LastPrice     float64 `json:"lastPrice"`

	Source    string `json:"source"`
	FirstSeen int64  `json:"firstSeen"`

	// SnipeHistory holds the most recent SnipeHistoryCap buys, oldest
	// first.
	SnipeHistory []SnipeEvent `json:"snipeHistory"`
}

// BestAddress returns the full contract address when known, otherwise
// the stored (possibly truncated) one.
func (h *Holding) BestAddress() string {
	if h.FullContractAddress != "" {
		return h.FullContractAddress
	}
	return h.ContractAddress
}

// AppendSnipe pushes an event onto the bounded history, evicting the
// oldest entry when the cap is exceeded.
func (h *Holding) AppendSnipe(e SnipeEvent) {
	h.SnipeHistory = append(h.SnipeHistory, e)
	if n := len(h.SnipeHistory); n > SnipeHistoryCap {
		h.SnipeHistory = h.SnipeHistory[n-SnipeHistoryCap:]
	}
}

// PricePoint is one observed valuation for a tracked symbol, appended to
// the price history timeseries on every successful refresh.
type PricePoint struct {
	Symbol          string  `json:"symbol"`
	ContractAddress string  `json:"contractAddress,omitempty"`
	Price           float64 `json:"price"`
	Source          string  `json:"source"`
	TimestampMs     int64   `json:"timestampMs"`
}
