package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/zarrinbook/zarrinbook/internal/domain"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	plansGenerated  *prometheus.CounterVec
	eventsIngested  *prometheus.CounterVec
	streamClients   prometheus.Gauge
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
				Name:    "zarrinbook_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		plansGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_installment_plans_total",
				Help: "Installment plans generated, by invoice kind.",
			},
			[]string{"kind"},
		),
		eventsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zarrinbook_error_events_total",
				Help: "Client error events ingested, by level.",
			},
			[]string{"level"},
		),
		streamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zarrinbook_log_stream_clients",
				Help: "Currently connected log stream WebSocket clients.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrPlanGenerated increments the installment plan counter.
func (m *Metrics) IncrPlanGenerated(kind string) {
	m.plansGenerated.WithLabelValues(kind).Inc()
}

// IncrEventIngested increments the error event counter.
func (m *Metrics) IncrEventIngested(level string) {
	m.eventsIngested.WithLabelValues(level).Inc()
}

// SetStreamClients records the current WebSocket subscriber count.
func (m *Metrics) SetStreamClients(n int) {
	m.streamClients.Set(float64(n))
}

// GetDashboardSnapshot returns a snapshot of dashboard-related metrics
// for the GET /v1/admin/metrics/summary endpoint.
func (m *Metrics) GetDashboardSnapshot() *domain.DashboardMetrics {
	// Prometheus counters expose cumulative values.
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "gold_spot")
	cacheMisses := getCounterValue(m.cacheMisses, "gold_spot")
	events := getCounterValue(m.eventsIngested, domain.LevelError) +
		getCounterValue(m.eventsIngested, domain.LevelWarn) +
		getCounterValue(m.eventsIngested, domain.LevelInfo)
	plans := getCounterValue(m.plansGenerated, domain.InvoiceCurrency) +
		getCounterValue(m.plansGenerated, domain.InvoiceGold)

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.DashboardMetrics{
		TotalRequests:  int64(totalRequests),
		ErrorRate:      errorRate,
		EventsIngested: int64(events),
		StreamClients:  int64(getGaugeValue(m.streamClients)),
		CacheHitRate:   cacheHitRate,
		PlansGenerated: int64(plans),
		Period:         "all_time",
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

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}
