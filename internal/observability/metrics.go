// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Extraction metrics
	ExtractionsTotal    prometheus.Counter
	ExtractionFallbacks *prometheus.CounterVec
	AddressUpgrades     *prometheus.CounterVec

	// Provider cascade metrics
	ProviderAttempts  *prometheus.CounterVec
	ProviderFailures  *prometheus.CounterVec
	ProviderSuccesses *prometheus.CounterVec
	CascadeExhausted  prometheus.Counter

	// Refresh metrics
	RefreshResults prometheus.Counter
	TrackedTokens  prometheus.Gauge

	// Portfolio metrics
	SnipesTotal prometheus.Counter
	SellsTotal  prometheus.Counter

	// Session metrics
	PageSessions prometheus.Gauge
	UISessions   prometheus.Gauge

	// Reference price
	SOLPriceUSD prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "snipetrader"
	}

	return &Metrics{
		ExtractionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "extractions_total",
			Help:      "Total number of token extractions performed",
		}),
		ExtractionFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "fallbacks_total",
			Help:      "Extractions where a field cascade was exhausted and the sentinel was used",
		}, []string{"field"}),
		AddressUpgrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "address_upgrades_total",
			Help:      "Truncated addresses upgraded to full, by source",
		}, []string{"source"}),

		ProviderAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "provider_attempts_total",
			Help:      "Provider fetch attempts, by strategy",
		}, []string{"strategy"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "provider_failures_total",
			Help:      "Provider fetches that returned an error or no value, by strategy",
		}, []string{"strategy"}),
		ProviderSuccesses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "provider_successes_total",
			Help:      "Provider fetches that produced the winning valuation, by strategy",
		}, []string{"strategy"}),
		CascadeExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cascade_exhausted_total",
			Help:      "Valuation requests where every provider failed",
		}),

		RefreshResults: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "refresh_results_total",
			Help:      "Successful tracked-token price refreshes",
		}),
		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tracked_tokens",
			Help:      "Symbols with an active refresh job",
		}),

		SnipesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snipes_total",
			Help:      "Paper snipes recorded",
		}),
		SellsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "sells_total",
			Help:      "Paper sells recorded",
		}),

		PageSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "page_sessions",
			Help:      "Connected page sessions (0 or 1)",
		}),
		UISessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ui_sessions",
			Help:      "Connected UI listener sessions",
		}),

		SOLPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "sol_price_usd",
			Help:      "Last known SOL/USD reference price",
		}),
	}
}

// ObserveAttempt implements the cascade recorder.
func (m *Metrics) ObserveAttempt(strategy string) {
	m.ProviderAttempts.WithLabelValues(strategy).Inc()
}

// ObserveFailure implements the cascade recorder.
func (m *Metrics) ObserveFailure(strategy string) {
	m.ProviderFailures.WithLabelValues(strategy).Inc()
}

// ObserveSuccess implements the cascade recorder.
func (m *Metrics) ObserveSuccess(strategy string) {
	m.ProviderSuccesses.WithLabelValues(strategy).Inc()
}

// ObserveExhausted implements the cascade recorder.
func (m *Metrics) ObserveExhausted() {
	m.CascadeExhausted.Inc()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordExtraction increments the extraction counter, with a fallback
// increment per field that ended on its sentinel.
func RecordExtraction(fallbackFields ...string) {
	DefaultMetrics.ExtractionsTotal.Inc()
	for _, field := range fallbackFields {
		DefaultMetrics.ExtractionFallbacks.WithLabelValues(field).Inc()
	}
}

// RecordAddressUpgrade increments the reconciliation counter.
func RecordAddressUpgrade(source string) {
	DefaultMetrics.AddressUpgrades.WithLabelValues(source).Inc()
}

// RecordRefresh increments the successful refresh counter.
func RecordRefresh() {
	DefaultMetrics.RefreshResults.Inc()
}

// SetTrackedTokens updates the active refresh job gauge.
func SetTrackedTokens(n int) {
	DefaultMetrics.TrackedTokens.Set(float64(n))
}

// RecordSnipe increments the snipe counter.
func RecordSnipe() {
	DefaultMetrics.SnipesTotal.Inc()
}

// RecordSell increments the sell counter.
func RecordSell() {
	DefaultMetrics.SellsTotal.Inc()
}

// SetSessionCounts updates the session gauges.
func SetSessionCounts(pageConnected bool, uiCount int) {
	if pageConnected {
		DefaultMetrics.PageSessions.Set(1)
	} else {
		DefaultMetrics.PageSessions.Set(0)
	}
	DefaultMetrics.UISessions.Set(float64(uiCount))
}

// SetSOLPrice updates the reference price gauge.
func SetSOLPrice(usd float64) {
	DefaultMetrics.SOLPriceUSD.Set(usd)
}
