package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"snipetrader/internal/domain"
	"snipetrader/internal/extract"
	"snipetrader/internal/observability"
	"snipetrader/internal/page"
	"snipetrader/internal/portfolio"
	"snipetrader/internal/reconcile"
	"snipetrader/internal/storage/memory"
)

type fakeTracker struct {
	mu      sync.Mutex
	started map[string]string
	stopped []string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{started: make(map[string]string)}
}

func (f *fakeTracker) StartTracking(symbol, contractAddress string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started[symbol] = contractAddress
}

func (f *fakeTracker) StopTracking(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, symbol)
}

type fakeFetcher struct {
	value  float64
	source string
	ok     bool
}

func (f *fakeFetcher) FetchValuation(ctx context.Context, symbol, contractAddress string) (float64, string, bool) {
	return f.value, f.source, f.ok
}

type fixedSOL float64

func (f fixedSOL) Price(ctx context.Context) float64 { return float64(f) }

func newHandlerHarness(t *testing.T, fetcher ValuationFetcher) (*hubHarness, *fakeTracker, *portfolio.Ledger) {
	t.Helper()
	h := newHubHarness(t, Options{})
	ledger := portfolio.NewLedger(portfolio.Options{
		Holdings: memory.NewHoldingStore(),
		SnipeLog: memory.NewSnipeLogStore(),
		SOLPrice: fixedSOL(100),
	})
	tracker := newFakeTracker()
	RegisterHandlers(h.hub, Deps{
		Ledger:   ledger,
		Tracker:  tracker,
		Fetcher:  fetcher,
		SOLPrice: fixedSOL(100),
	})
	return h, tracker, ledger
}

// readEnvelopes reads n messages and splits them into broadcasts and
// responses by shape.
func readMessages(t *testing.T, ws *websocket.Conn, n int) (broadcasts []map[string]json.RawMessage, responses []Response) {
	t.Helper()
	for i := 0; i < n; i++ {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("Unmarshal message failed: %v", err)
		}
		if _, isResponse := fields["success"]; isResponse {
			var resp Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				t.Fatalf("Unmarshal response failed: %v", err)
			}
			responses = append(responses, resp)
		} else {
			broadcasts = append(broadcasts, fields)
		}
	}
	return broadcasts, responses
}

func snipePayload(t *testing.T, rec domain.TokenRecord, amount float64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(SnipeRequest{TokenData: rec, AmountSOL: amount, Source: "manual"})
	if err != nil {
		t.Fatalf("Marshal snipe request failed: %v", err)
	}
	return raw
}

func TestHandlers_SnipeToken(t *testing.T) {
	h, tracker, _ := newHandlerHarness(t, &fakeFetcher{})
	ui := h.dial(t, "/ws/ui")

	rec := domain.TokenRecord{
		Symbol:          "PEPE",
		ContractAddress: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		Price:           50,
		Timestamp:       time.Now().UnixMilli(),
	}
	if err := ui.WriteJSON(Request{ID: 1, Action: ActionSnipeToken, Data: snipePayload(t, rec, 0.5)}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// A portfolioUpdate broadcast lands before the enveloped response.
	broadcasts, responses := readMessages(t, ui, 2)
	if len(broadcasts) != 1 || len(responses) != 1 {
		t.Fatalf("Expected 1 broadcast and 1 response, got %d and %d", len(broadcasts), len(responses))
	}

	resp := responses[0]
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var result portfolio.SnipeResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("Unmarshal snipe result failed: %v", err)
	}
	if result.TokensBought != 1 { // 0.5 SOL * 100 USD / 50 price
		t.Errorf("Expected 1 token bought, got %v", result.TokensBought)
	}

	tracker.mu.Lock()
	addr := tracker.started["PEPE"]
	tracker.mu.Unlock()
	if addr != rec.ContractAddress {
		t.Errorf("Expected tracking started with %s, got %q", rec.ContractAddress, addr)
	}

	var action string
	json.Unmarshal(broadcasts[0]["action"], &action)
	if action != BroadcastPortfolioUpdate {
		t.Errorf("Expected %s broadcast, got %q", BroadcastPortfolioUpdate, action)
	}
}

func TestHandlers_SellTokenStopsTracking(t *testing.T) {
	h, tracker, ledger := newHandlerHarness(t, &fakeFetcher{})
	ui := h.dial(t, "/ws/ui")

	rec := domain.TokenRecord{Symbol: "WIF", Price: 100, Timestamp: time.Now().UnixMilli()}
	if _, err := ledger.Snipe(context.Background(), rec, 1, "manual"); err != nil {
		t.Fatalf("Snipe failed: %v", err)
	}

	raw, _ := json.Marshal(SellRequest{Symbol: "WIF", Tokens: 1})
	if err := ui.WriteJSON(Request{ID: 3, Action: ActionSellToken, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	_, responses := readMessages(t, ui, 2)
	if len(responses) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(responses))
	}
	if !responses[0].Success {
		t.Fatalf("Expected success, got error %q", responses[0].Error)
	}
	var result SellResult
	if err := json.Unmarshal(responses[0].Data, &result); err != nil {
		t.Fatalf("Unmarshal sell result failed: %v", err)
	}
	if result.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %v", result.Remaining)
	}

	tracker.mu.Lock()
	stopped := append([]string(nil), tracker.stopped...)
	tracker.mu.Unlock()
	if len(stopped) != 1 || stopped[0] != "WIF" {
		t.Errorf("Expected tracking stopped for WIF, got %v", stopped)
	}
}

func TestHandlers_GetPortfolioData(t *testing.T) {
	h, _, ledger := newHandlerHarness(t, &fakeFetcher{})
	ui := h.dial(t, "/ws/ui")

	rec := domain.TokenRecord{Symbol: "BNB", Price: 200, Timestamp: time.Now().UnixMilli()}
	if _, err := ledger.Snipe(context.Background(), rec, 0.5, "manual"); err != nil {
		t.Fatalf("Snipe failed: %v", err)
	}

	if err := ui.WriteJSON(Request{ID: 9, Action: ActionGetPortfolioData}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var data PortfolioData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("Unmarshal portfolio data failed: %v", err)
	}
	if len(data.Holdings) != 1 || data.Holdings[0].Symbol != "BNB" {
		t.Fatalf("Expected one BNB holding, got %+v", data.Holdings)
	}
	if len(data.RecentSnipes) != 1 {
		t.Errorf("Expected one snipe event, got %d", len(data.RecentSnipes))
	}
	if data.SOLPriceUSD != 100 {
		t.Errorf("Expected SOL price 100, got %v", data.SOLPriceUSD)
	}
}

func TestHandlers_InjectSnipeButtons(t *testing.T) {
	h, _, _ := newHandlerHarness(t, &fakeFetcher{})
	ui := h.dial(t, "/ws/ui")

	markup := `<div class="token-row">
		<span>PEPE</span>
		<button data-node-id="n4" class="instant-buy">0.5 SOL</button>
	</div>
	<div class="token-row">
		<span>WIF</span>
		<button data-node-id="n9">Buy</button>
	</div>`
	raw, _ := json.Marshal(InjectRequest{Markup: markup})
	if err := ui.WriteJSON(Request{ID: 4, Action: ActionInjectButtons, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var result InjectResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("Unmarshal inject result failed: %v", err)
	}
	if len(result.NodeIDs) != 2 {
		t.Fatalf("Expected 2 buy controls, got %v", result.NodeIDs)
	}
	if result.NodeIDs[0] != "n4" || result.NodeIDs[1] != "n9" {
		t.Errorf("Expected [n4 n9], got %v", result.NodeIDs)
	}
}

func TestHandlers_ExtractToken(t *testing.T) {
	clipboard := reconcile.NewClipboard()
	h := newHubHarness(t, Options{Clipboard: clipboard})
	RegisterHandlers(h.hub, Deps{
		Extractor: extract.NewExtractor(extract.Options{}),
		Resolver:  reconcile.NewReconciler(clipboard, nil),
		Ledger: portfolio.NewLedger(portfolio.Options{
			Holdings: memory.NewHoldingStore(),
			SnipeLog: memory.NewSnipeLogStore(),
			SOLPrice: fixedSOL(100),
		}),
		Fetcher: &fakeFetcher{},
	})
	ui := h.dial(t, "/ws/ui")

	// The page shows only the truncated form; the full address was
	// captured from a copy event beforehand.
	fullAddress := "Ck5DqRT7X9VbdxN8P3HYKqWr1234567890abBAGS"
	clipboard.Observe(fullAddress)

	markup := `<div class="token-row">
		<span>BNB Inconvenience Coin</span>
		<span>MC$21.1K</span>
		<span>Ck5D...BAGS</span>
		<button class="instant-buy">0.5 SOL</button>
	</div>`
	raw, _ := json.Marshal(ExtractRequest{Markup: markup})
	if err := ui.WriteJSON(Request{ID: 8, Action: ActionExtractToken, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var rec domain.TokenRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		t.Fatalf("Unmarshal token record failed: %v", err)
	}
	if rec.Symbol != "BNB" {
		t.Errorf("Expected symbol BNB, got %q", rec.Symbol)
	}
	if rec.Price != 21100 {
		t.Errorf("Expected price 21100, got %v", rec.Price)
	}
	if rec.ContractAddress != "Ck5D...BAGS" {
		t.Errorf("Expected truncated address retained, got %q", rec.ContractAddress)
	}
	if rec.FullContractAddress != fullAddress {
		t.Errorf("Expected clipboard upgrade to %s, got %q", fullAddress, rec.FullContractAddress)
	}
}

func TestHandlers_ExtractTokenNoUpgrade(t *testing.T) {
	clipboard := reconcile.NewClipboard()
	h := newHubHarness(t, Options{Clipboard: clipboard})
	RegisterHandlers(h.hub, Deps{
		Extractor: extract.NewExtractor(extract.Options{}),
		Resolver:  reconcile.NewReconciler(clipboard, nil),
		Ledger: portfolio.NewLedger(portfolio.Options{
			Holdings: memory.NewHoldingStore(),
			SnipeLog: memory.NewSnipeLogStore(),
			SOLPrice: fixedSOL(100),
		}),
		Fetcher: &fakeFetcher{},
	})
	ui := h.dial(t, "/ws/ui")

	markup := `<div class="token-row">
		<span>Frogling Coin</span>
		<span>Ck5D...BAGS</span>
		<button class="instant-buy">Buy</button>
	</div>`
	raw, _ := json.Marshal(ExtractRequest{Markup: markup})
	if err := ui.WriteJSON(Request{ID: 9, Action: ActionExtractToken, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var rec domain.TokenRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		t.Fatalf("Unmarshal token record failed: %v", err)
	}
	if rec.FullContractAddress != "" {
		t.Errorf("Expected no upgrade without evidence, got %q", rec.FullContractAddress)
	}
	if rec.Price != domain.DefaultTokenPrice {
		t.Errorf("Expected sentinel price, got %v", rec.Price)
	}
}

func TestHandlers_ExtractTokenAbsentAddress(t *testing.T) {
	clipboard := reconcile.NewClipboard()
	h := newHubHarness(t, Options{Clipboard: clipboard})
	RegisterHandlers(h.hub, Deps{
		Extractor: extract.NewExtractor(extract.Options{}),
		Resolver:  reconcile.NewReconciler(clipboard, nil),
		Ledger: portfolio.NewLedger(portfolio.Options{
			Holdings: memory.NewHoldingStore(),
			SnipeLog: memory.NewSnipeLogStore(),
			SOLPrice: fixedSOL(100),
		}),
		Fetcher: &fakeFetcher{},
	})
	ui := h.dial(t, "/ws/ui")

	// The page shows no address form at all; the copied address still
	// resolves the record.
	fullAddress := "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	clipboard.Observe(fullAddress)

	markup := `<div class="token-row">
		<span>BNB Inconvenience Coin</span>
		<span>MC$21.1K</span>
		<button class="instant-buy">0.5 SOL</button>
	</div>`
	raw, _ := json.Marshal(ExtractRequest{Markup: markup})
	if err := ui.WriteJSON(Request{ID: 10, Action: ActionExtractToken, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var rec domain.TokenRecord
	if err := json.Unmarshal(resp.Data, &rec); err != nil {
		t.Fatalf("Unmarshal token record failed: %v", err)
	}
	if rec.ContractAddress != "" {
		t.Errorf("Expected no extracted address, got %q", rec.ContractAddress)
	}
	if rec.FullContractAddress != fullAddress {
		t.Errorf("Expected clipboard resolution to %s, got %q", fullAddress, rec.FullContractAddress)
	}
}

type stubExtractor struct {
	rec       domain.TokenRecord
	fallbacks []string
}

func (s *stubExtractor) Extract(ctx context.Context, root *page.Node) (domain.TokenRecord, []string) {
	return s.rec, s.fallbacks
}

func TestHandlers_FallbackMetricFollowsCascadeOutcome(t *testing.T) {
	// A record whose price happens to equal the sentinel value is not a
	// price-cascade miss; the fallback counter must stay put.
	h := newHubHarness(t, Options{})
	RegisterHandlers(h.hub, Deps{
		Extractor: &stubExtractor{rec: domain.TokenRecord{
			Symbol:              "DUST",
			ContractAddress:     "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
			FullContractAddress: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
			Price:               domain.DefaultTokenPrice,
		}},
		Ledger: portfolio.NewLedger(portfolio.Options{
			Holdings: memory.NewHoldingStore(),
			SnipeLog: memory.NewSnipeLogStore(),
			SOLPrice: fixedSOL(100),
		}),
		Fetcher: &fakeFetcher{},
	})
	ui := h.dial(t, "/ws/ui")

	priceFallbacks := observability.DefaultMetrics.ExtractionFallbacks.WithLabelValues("price")
	before := testutil.ToFloat64(priceFallbacks)

	raw, _ := json.Marshal(ExtractRequest{Markup: `<div></div>`})
	if err := ui.WriteJSON(Request{ID: 11, Action: ActionExtractToken, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}

	if after := testutil.ToFloat64(priceFallbacks); after != before {
		t.Errorf("Expected price fallback counter unchanged, got %v -> %v", before, after)
	}
}

func TestHandlers_ScrapeTokenPrice(t *testing.T) {
	h, _, _ := newHandlerHarness(t, &fakeFetcher{value: 21100, source: "pumpportal", ok: true})
	ui := h.dial(t, "/ws/ui")

	raw, _ := json.Marshal(ScrapeRequest{Symbol: "PEPE"})
	if err := ui.WriteJSON(Request{ID: 5, Action: ActionScrapePrice, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	resp := readResponse(t, ui)
	if !resp.Success {
		t.Fatalf("Expected success, got error %q", resp.Error)
	}
	var out struct {
		Price  float64 `json:"price"`
		Source string  `json:"source"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("Unmarshal scrape result failed: %v", err)
	}
	if out.Price != 21100 || out.Source != "pumpportal" {
		t.Errorf("Expected 21100 from pumpportal, got %v from %q", out.Price, out.Source)
	}
}

func TestHandlers_ScrapeTokenPriceExhausted(t *testing.T) {
	h, _, _ := newHandlerHarness(t, &fakeFetcher{ok: false})
	ui := h.dial(t, "/ws/ui")

	raw, _ := json.Marshal(ScrapeRequest{Symbol: "GHOST"})
	if err := ui.WriteJSON(Request{ID: 6, Action: ActionScrapePrice, Data: raw}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	resp := readResponse(t, ui)
	if resp.Success {
		t.Error("Expected failure envelope when the cascade is exhausted")
	}
}
