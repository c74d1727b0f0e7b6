// Package session is the WebSocket surface of the service: an in-page
// script connects as the page session (snapshots, clipboard events,
// command responses), UI clients connect as listeners and issue
// request/response commands wrapped in {success, data|error} envelopes.
package session

import (
	"encoding/json"

	"snipetrader/internal/domain"
)

// Inbound actions from UI sessions.
const (
	ActionExtractToken     = "extractToken"
	ActionSnipeToken       = "snipeToken"
	ActionGetPortfolioData = "getPortfolioData"
	ActionInjectButtons    = "injectSnipeButtons"
	ActionScrapePrice      = "scrapeTokenPrice"
	ActionSellToken        = "sellToken"
)

// Inbound actions from the page session.
const (
	ActionClipboardWrite = "clipboardWrite"
	ActionCommandResult  = "commandResult"
)

// Commands sent to the page session.
const (
	CommandProbeCopy   = "probeCopy"
	CommandScrapePrice = "scrapeTokenPrice"
)

// Broadcast actions to UI sessions.
const (
	BroadcastPortfolioUpdate = "portfolioUpdate"
	BroadcastPriceUpdate     = "priceUpdate"
)

// Request is an inbound message. ID correlates the response; zero means
// fire-and-forget.
type Request struct {
	ID     uint64          `json:"id,omitempty"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Envelope is the {success, data|error} reply wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Response answers a Request over the same connection.
type Response struct {
	ID     uint64 `json:"id,omitempty"`
	Action string `json:"action"`
	Envelope
}

// Command is an instruction for the page session.
type Command struct {
	ID     uint64      `json:"id"`
	Action string      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

// Broadcast is a fire-and-forget notification to UI sessions.
type Broadcast struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// SnipeRequest is the snipeToken payload.
type SnipeRequest struct {
	TokenData domain.TokenRecord `json:"tokenData"`
	AmountSOL float64            `json:"amount"`
	Source    string             `json:"source"`
}

// SellRequest is the sellToken payload.
type SellRequest struct {
	Symbol string  `json:"symbol"`
	Tokens float64 `json:"tokens"`
}

// PortfolioData is the getPortfolioData payload.
type PortfolioData struct {
	Holdings     []*domain.Holding   `json:"holdings"`
	RecentSnipes []domain.SnipeEvent `json:"recentSnipes"`
	SOLPriceUSD  float64             `json:"solPriceUSD"`
}

// SellResult reports the position left after a sell.
type SellResult struct {
	Symbol    string  `json:"symbol"`
	Remaining float64 `json:"remaining"`
}

// ScrapeRequest keys a page scrape on a symbol.
type ScrapeRequest struct {
	Symbol string `json:"symbol"`
}

// PriceQuote is the page script's scrape result.
type PriceQuote struct {
	Price float64 `json:"price"`
}

// ClipboardEvent reports a clipboard write observed on the page.
type ClipboardEvent struct {
	Value string `json:"value"`
}

// ProbeRequest asks the page script to click a node and report the
// captured clipboard value.
type ProbeRequest struct {
	NodeID string `json:"nodeId"`
}

// ProbeResult is the page script's reply to a probeCopy command.
type ProbeResult struct {
	Value string `json:"value"`
}

// ExtractRequest carries a serialized page fragment around a buy
// control, to be turned into a TokenRecord.
type ExtractRequest struct {
	Markup string `json:"markup"`
}

// InjectRequest carries serialized page markup to classify.
type InjectRequest struct {
	Markup string `json:"markup"`
}

// InjectResult lists the node IDs of buy controls, one per token row,
// for the page script to decorate.
type InjectResult struct {
	NodeIDs []string `json:"nodeIds"`
}

// ok builds a success envelope around a marshaled payload.
func ok(data interface{}) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return fail(err)
	}
	return Envelope{Success: true, Data: raw}
}

// fail builds an error envelope.
func fail(err error) Envelope {
	return Envelope{Success: false, Error: err.Error()}
}
