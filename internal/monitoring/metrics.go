package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PagesFetchedTotal   *prometheus.CounterVec
	ListingsDiscovered  prometheus.Counter
	PropertiesHarvested prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	HarvestDuration     prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFetchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "The total number of pages fetched",
		}, []string{"kind", "outcome"}), // kind: search, detail; outcome: ok, failed
		ListingsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_listings_discovered_total",
			Help: "The total number of listing URLs discovered",
		}),
		PropertiesHarvested: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_properties_harvested_total",
			Help: "The total number of property records extracted",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g., 'fetch_failed', 'no_title', 'extract_panic'
		HarvestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "Duration of harvest runs.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncPageFetched(kind, outcome string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) AddDiscovered(n int) {
	if m == nil {
		return
	}
	m.ListingsDiscovered.Add(float64(n))
}

func (m *Metrics) IncHarvested() {
	if m == nil {
		return
	}
	m.PropertiesHarvested.Inc()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveHarvest(d time.Duration) {
	if m == nil {
		return
	}
	m.HarvestDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
