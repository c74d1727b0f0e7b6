// Package main provides the unified snipetrader service:
// - Session hub: page and UI WebSocket sessions
// - Extraction: token records from page fragments, address reconciliation
// - Pricing: sequential provider cascade with SOL/USD reference price
// - Scheduler: recurring refresh of every tracked token
// - Portfolio: paper-trade ledger with persisted holdings
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snipetrader/internal/extract"
	"snipetrader/internal/observability"
	"snipetrader/internal/portfolio"
	"snipetrader/internal/pricing"
	"snipetrader/internal/reconcile"
	"snipetrader/internal/scheduler"
	"snipetrader/internal/session"
	"snipetrader/internal/storage"
	chstore "snipetrader/internal/storage/clickhouse"
	"snipetrader/internal/storage/memory"
	"snipetrader/internal/storage/migrations"
	pgstore "snipetrader/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	holdingStore      storage.HoldingStore
	snipeLogStore     storage.SnipeLogStore
	priceHistoryStore storage.PriceHistoryStore
	settingsStore     storage.SettingsStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "WebSocket session HTTP address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	relayURL := flag.String("relay-url", os.Getenv("RELAY_URL"), "CORS relay base URL for provider requests (optional)")
	refreshPeriod := flag.Duration("refresh-period", scheduler.DefaultPeriod, "Tracked token refresh interval")
	immediateDelay := flag.Duration("immediate-delay", scheduler.DefaultImmediateDelay, "Delay before the first fetch after tracking starts")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Provider HTTP client, optionally routed through a relay.
	var clientOpts []pricing.ClientOption
	if *relayURL != "" {
		clientOpts = append(clientOpts, pricing.WithRelay(pricing.NewRelay(*relayURL)))
		logger.Printf("Routing provider requests through relay %s", *relayURL)
	}
	client := pricing.NewClient(clientOpts...)

	solPrice := pricing.NewSOLPriceCache(pricing.SOLPriceOptions{
		Client: client,
		Store:  stores.settingsStore,
		Logger: logger,
	})

	clipboard := reconcile.NewClipboard()
	hub := session.NewHub(session.Options{
		Clipboard:  clipboard,
		OnSessions: observability.SetSessionCounts,
		Logger:     logger,
	})

	// Provider cascade, strictly ordered. The page-scrape strategy asks
	// the connected page session and is the only one that runs without a
	// full contract address.
	pumpPortal := pricing.NewPumpPortal(client, "")
	cascade := pricing.NewCascade(pricing.CascadeOptions{
		Strategies: []pricing.Strategy{
			pumpPortal,
			pricing.NewJupiter(client, ""),
			pricing.NewPumpFun(client, ""),
			pricing.NewDexScreener(client, ""),
			pricing.NewPageScrape(hub),
			pricing.NewCoinGecko(client, ""),
		},
		SOLPrice: solPrice,
		Metrics:  observability.DefaultMetrics,
		Logger:   logger,
	})

	sched := scheduler.New(scheduler.Options{
		Fetcher:        cascade,
		Holdings:       stores.holdingStore,
		History:        stores.priceHistoryStore,
		Period:         *refreshPeriod,
		ImmediateDelay: *immediateDelay,
		Notify: func(change scheduler.PriceChange) {
			observability.RecordRefresh()
			hub.Notify(session.BroadcastPriceUpdate, change)
		},
		Logger: logger,
	})

	ledger := portfolio.NewLedger(portfolio.Options{
		Holdings: stores.holdingStore,
		SnipeLog: stores.snipeLogStore,
		SOLPrice: solPrice,
		Logger:   logger,
	})

	session.RegisterHandlers(hub, session.Deps{
		Extractor: extract.NewExtractor(extract.Options{Prober: hub, Logger: logger}),
		Resolver:  reconcile.NewReconciler(clipboard, logger),
		Ledger:    ledger,
		Tracker:   &gaugedTracker{sched: sched},
		Fetcher:   cascade,
		SOLPrice:  solPrice,
		Logger:    logger,
	})

	// Startup probes. Failures are logged, not fatal: the cascade
	// degrades past an unhealthy provider on its own.
	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	if pumpPortal.Healthy(probeCtx) {
		logger.Println("PumpPortal connectivity: ok")
	} else {
		logger.Println("PumpPortal connectivity: unreachable, cascade will fall through")
	}
	usd := solPrice.Price(probeCtx)
	observability.SetSOLPrice(usd)
	logger.Printf("SOL reference price: $%.2f", usd)
	probeCancel()

	// Re-track everything in the persisted portfolio.
	if err := sched.Resume(ctx); err != nil {
		logger.Printf("Resume tracking failed: %v", err)
	}
	observability.SetTrackedTokens(len(sched.Tracked()))
	logger.Printf("Tracking %d persisted symbols", len(sched.Tracked()))

	// Session endpoints.
	sessionMux := http.NewServeMux()
	sessionMux.HandleFunc("/ws/page", hub.ServePage)
	sessionMux.HandleFunc("/ws/ui", hub.ServeUI)
	sessionMux.HandleFunc("/relay", handleRelay(logger))
	sessionMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	sessionServer := &http.Server{Addr: *listenAddr, Handler: sessionMux}

	go func() {
		logger.Printf("Starting session server on %s", *listenAddr)
		if err := sessionServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Session server error: %v", err)
		}
	}()
	go startMetricsServer(logger, *metricsAddr)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	sched.StopAll()
	hub.Close()
	if err := sessionServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Session server shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}

// gaugedTracker wraps the scheduler so the active-jobs gauge follows
// every start and stop.
type gaugedTracker struct {
	sched *scheduler.Scheduler
}

func (t *gaugedTracker) StartTracking(symbol, contractAddress string) {
	t.sched.StartTracking(symbol, contractAddress)
	observability.SetTrackedTokens(len(t.sched.Tracked()))
}

func (t *gaugedTracker) StopTracking(symbol string) {
	t.sched.StopTracking(symbol)
	observability.SetTrackedTokens(len(t.sched.Tracked()))
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			holdingStore:      memory.NewHoldingStore(),
			snipeLogStore:     memory.NewSnipeLogStore(),
			priceHistoryStore: memory.NewPriceHistoryStore(),
			settingsStore:     memory.NewSettingsStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (portfolio + settings)
		holdingStore:  pgstore.NewHoldingStore(pool),
		snipeLogStore: pgstore.NewSnipeLogStore(pool),
		settingsStore: pgstore.NewSettingsStore(pool),

		// ClickHouse store (timeseries)
		priceHistoryStore: chstore.NewPriceHistoryStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// startMetricsServer starts the HTTP server for health and metrics.
func startMetricsServer(logger *log.Logger, addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

// handleRelay proxies GET requests for in-page callers that cannot
// reach providers cross-origin themselves. Only http(s) targets are
// accepted.
func handleRelay(logger *log.Logger) http.HandlerFunc {
	relayClient := &http.Client{Timeout: 15 * time.Second}

	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			http.Error(w, "invalid url parameter", http.StatusBadRequest)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
		if err != nil {
			http.Error(w, "invalid target request", http.StatusBadRequest)
			return
		}
		resp, err := relayClient.Do(req)
		if err != nil {
			logger.Printf("Relay fetch %s failed: %v", target, err)
			http.Error(w, "relay fetch failed", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}

// envOr returns the environment value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads .env into the environment without overriding
// existing variables.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
