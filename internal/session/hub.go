package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"snipetrader/internal/extract"
	"snipetrader/internal/pricing"
	"snipetrader/internal/reconcile"
)

var (
	_ extract.CopyProber   = (*Hub)(nil)
	_ pricing.PriceScraper = (*Hub)(nil)
)

// Timing defaults for page command round-trips and writes.
const (
	DefaultCommandTimeout = 3 * time.Second
	writeTimeout          = 10 * time.Second
)

// ErrNoPageSession is returned when a command needs a connected page
// and none is attached.
var ErrNoPageSession = errors.New("session: no page session connected")

// Handler executes one inbound UI action. The returned value is
// marshaled into the success envelope.
type Handler func(ctx context.Context, data json.RawMessage) (interface{}, error)

// Options configures a Hub.
type Options struct {
	// Clipboard receives clipboard writes reported by the page session.
	Clipboard *reconcile.Clipboard

	// CommandTimeout bounds page command round-trips.
	CommandTimeout time.Duration

	// OnSessions, when set, is called with the current session counts
	// after every connect and disconnect.
	OnSessions func(pageConnected bool, uiCount int)

	Logger *log.Logger
}

// conn wraps a websocket connection with serialized writes.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Hub owns the page session and the set of UI sessions. It routes UI
// requests to registered handlers, relays commands to the page, and
// broadcasts notifications. It implements the copy-probe and
// page-scrape collaborator interfaces of the extraction and pricing
// layers.
type Hub struct {
	clipboard      *reconcile.Clipboard
	commandTimeout time.Duration
	onSessions     func(pageConnected bool, uiCount int)
	logger         *log.Logger
	upgrader       websocket.Upgrader

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	pageMu sync.RWMutex
	page   *conn

	uiMu sync.Mutex
	ui   map[*conn]struct{}

	commandID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan json.RawMessage
}

// NewHub builds a Hub from opts.
func NewHub(opts Options) *Hub {
	h := &Hub{
		clipboard:      opts.Clipboard,
		commandTimeout: opts.CommandTimeout,
		onSessions:     opts.OnSessions,
		logger:         opts.Logger,
		handlers:       make(map[string]Handler),
		ui:             make(map[*conn]struct{}),
		pending:        make(map[uint64]chan json.RawMessage),
	}
	if h.commandTimeout <= 0 {
		h.commandTimeout = DefaultCommandTimeout
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The page script and UI run on third-party origins.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return h
}

// Handle registers the handler for a UI action.
func (h *Hub) Handle(action string, fn Handler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[action] = fn
}

func (h *Hub) reportSessions() {
	if h.onSessions == nil {
		return
	}
	h.pageMu.RLock()
	pageConnected := h.page != nil
	h.pageMu.RUnlock()
	h.uiMu.Lock()
	uiCount := len(h.ui)
	h.uiMu.Unlock()
	h.onSessions(pageConnected, uiCount)
}

// ServePage upgrades the page session connection. A newer page session
// replaces the current one.
func (h *Hub) ServePage(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("session: page upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}

	h.pageMu.Lock()
	if h.page != nil {
		h.page.ws.Close()
	}
	h.page = c
	h.pageMu.Unlock()

	h.logger.Printf("session: page connected from %s", r.RemoteAddr)
	h.reportSessions()
	h.readPage(c)
}

// ServeUI upgrades a UI listener connection.
func (h *Hub) ServeUI(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("session: ui upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}

	h.uiMu.Lock()
	h.ui[c] = struct{}{}
	h.uiMu.Unlock()

	h.logger.Printf("session: ui connected from %s", r.RemoteAddr)
	h.reportSessions()
	h.readUI(c)
}

func (h *Hub) readPage(c *conn) {
	defer func() {
		h.pageMu.Lock()
		if h.page == c {
			h.page = nil
		}
		h.pageMu.Unlock()
		c.ws.Close()
		h.logger.Printf("session: page disconnected")
		h.reportSessions()
	}()

	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			return
		}
		switch req.Action {
		case ActionClipboardWrite:
			var ev ClipboardEvent
			if err := json.Unmarshal(req.Data, &ev); err == nil && ev.Value != "" && h.clipboard != nil {
				h.clipboard.Observe(ev.Value)
			}
		case ActionCommandResult:
			h.resolvePending(req.ID, req.Data)
		default:
			h.logger.Printf("session: unknown page action %q", req.Action)
		}
	}
}

func (h *Hub) readUI(c *conn) {
	defer func() {
		h.uiMu.Lock()
		delete(h.ui, c)
		h.uiMu.Unlock()
		c.ws.Close()
		h.logger.Printf("session: ui disconnected")
		h.reportSessions()
	}()

	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			return
		}
		h.dispatch(c, req)
	}
}

// dispatch runs the registered handler and writes the enveloped reply.
func (h *Hub) dispatch(c *conn, req Request) {
	h.handlersMu.RLock()
	fn, found := h.handlers[req.Action]
	h.handlersMu.RUnlock()

	var env Envelope
	if !found {
		env = fail(fmt.Errorf("unknown action %q", req.Action))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), h.commandTimeout+writeTimeout)
		out, err := fn(ctx, req.Data)
		cancel()
		if err != nil {
			env = fail(err)
		} else {
			env = ok(out)
		}
	}

	resp := Response{ID: req.ID, Action: req.Action, Envelope: env}
	if err := c.writeJSON(resp); err != nil {
		h.logger.Printf("session: reply to %s failed: %v", req.Action, err)
	}
}

// Notify broadcasts a fire-and-forget notification to every UI session.
// Absence of listeners is not an error.
func (h *Hub) Notify(action string, data interface{}) {
	h.uiMu.Lock()
	conns := make([]*conn, 0, len(h.ui))
	for c := range h.ui {
		conns = append(conns, c)
	}
	h.uiMu.Unlock()

	msg := Broadcast{Action: action, Data: data}
	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			h.logger.Printf("session: broadcast %s failed: %v", action, err)
		}
	}
}

// command sends an instruction to the page session and waits for its
// commandResult reply.
func (h *Hub) command(ctx context.Context, action string, data interface{}) (json.RawMessage, error) {
	h.pageMu.RLock()
	page := h.page
	h.pageMu.RUnlock()
	if page == nil {
		return nil, ErrNoPageSession
	}

	id := h.commandID.Add(1)
	ch := make(chan json.RawMessage, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, id)
		h.pendingMu.Unlock()
	}()

	if err := page.writeJSON(Command{ID: id, Action: action, Data: data}); err != nil {
		return nil, fmt.Errorf("send %s: %w", action, err)
	}

	timer := time.NewTimer(h.commandTimeout)
	defer timer.Stop()
	select {
	case raw := <-ch:
		return raw, nil
	case <-timer.C:
		return nil, fmt.Errorf("session: %s timed out", action)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) resolvePending(id uint64, raw json.RawMessage) {
	h.pendingMu.Lock()
	ch, found := h.pending[id]
	h.pendingMu.Unlock()
	if found {
		ch <- raw
	}
}

// ProbeCopy asks the page script to click the node and report the
// clipboard value it captured. The value also feeds the passive
// clipboard observer.
func (h *Hub) ProbeCopy(ctx context.Context, nodeID string) (string, bool) {
	raw, err := h.command(ctx, CommandProbeCopy, ProbeRequest{NodeID: nodeID})
	if err != nil {
		if !errors.Is(err, ErrNoPageSession) {
			h.logger.Printf("session: copy probe for %s failed: %v", nodeID, err)
		}
		return "", false
	}
	var res ProbeResult
	if err := json.Unmarshal(raw, &res); err != nil || res.Value == "" {
		return "", false
	}
	if h.clipboard != nil {
		h.clipboard.Observe(res.Value)
	}
	return res.Value, true
}

// ScrapePrice asks the page script to scrape a price for the symbol
// from the open aggregator page.
func (h *Hub) ScrapePrice(ctx context.Context, symbol string) (float64, bool) {
	raw, err := h.command(ctx, CommandScrapePrice, ScrapeRequest{Symbol: symbol})
	if err != nil {
		if !errors.Is(err, ErrNoPageSession) {
			h.logger.Printf("session: page scrape for %s failed: %v", symbol, err)
		}
		return 0, false
	}
	var res PriceQuote
	if err := json.Unmarshal(raw, &res); err != nil || res.Price <= 0 {
		return 0, false
	}
	return res.Price, true
}

// Close tears down every connection.
func (h *Hub) Close() {
	h.pageMu.Lock()
	if h.page != nil {
		h.page.ws.Close()
		h.page = nil
	}
	h.pageMu.Unlock()

	h.uiMu.Lock()
	for c := range h.ui {
		c.ws.Close()
	}
	h.ui = make(map[*conn]struct{})
	h.uiMu.Unlock()
}
