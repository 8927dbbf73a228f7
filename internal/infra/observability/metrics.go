package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/sme-tools/pdde-ledger/internal/domain"
)

// Allocation outcomes recorded per period save.
const (
	AllocationApplied = "applied"
	AllocationDropped = "dropped"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	periodsSaved    prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdde_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdde_store_errors_total",
				Help: "Total errors from the backing store.",
			},
			[]string{"store"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdde_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdde_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		allocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdde_interest_allocations_total",
				Help: "Interest allocation outcomes: applied to programs or dropped for lack of a positive base.",
			},
			[]string{"outcome"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdde_requests_total",
				Help: "Total HTTP requests processed, by status class.",
			},
			[]string{"status"},
		),
		periodsSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pdde_periods_saved_total",
				Help: "Total period saves accepted by the ledger.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrAllocation records the outcome of one interest allocation.
func (m *Metrics) IncrAllocation(outcome string) {
	m.allocations.WithLabelValues(outcome).Inc()
}

// IncrPeriodSaved counts an accepted period save.
func (m *Metrics) IncrPeriodSaved() {
	m.periodsSaved.Inc()
}

// IncrRequest increments the request counter with a status class label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// GetLedgerSnapshot returns a snapshot of ledger metrics suitable for
// the GET /v1/metrics/summary endpoint.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	var totalRequests, errorCount float64
	for _, class := range []string{"2xx", "3xx", "4xx", "5xx"} {
		v := getCounterValue(m.requestsTotal, class)
		totalRequests += v
		if class == "4xx" || class == "5xx" {
			errorCount += v
		}
	}
	cacheHits := getCounterValue(m.cacheHits, "statement")
	cacheMisses := getCounterValue(m.cacheMisses, "statement")
	dropped := getCounterValue(m.allocations, AllocationDropped)
	storeErrors := getCounterValue(m.storeErrors, "ledger") +
		getCounterValue(m.storeErrors, "purchase_orders") +
		getCounterValue(m.storeErrors, "attachments")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.LedgerMetrics{
		TotalRequests:   int64(totalRequests),
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		PeriodsSaved:    int64(getCounter(m.periodsSaved)),
		InterestDropped: int64(dropped),
		StoreErrors:     int64(storeErrors),
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// getCounter extracts the current float64 value from a plain counter.
func getCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
