package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics for flightlog
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Import Metrics
	ImportRowsTotal      *prometheus.CounterVec
	ImportBatchDuration  prometheus.Histogram
	ImportSessionsActive prometheus.Gauge

	// Catalog Metrics
	CatalogEntitiesCreated *prometheus.CounterVec
	CatalogCacheMisses     *prometheus.CounterVec

	// Coordinate Metrics
	BackfillRecordsTotal  *prometheus.CounterVec
	BackfillSweepDuration prometheus.Histogram
}

// NewRegistry registers every metric on reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh prometheus.NewRegistry() in tests.
func NewRegistry(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightlog_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightlog_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flightlog_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		ImportRowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightlog_import_rows_total",
				Help: "Imported spreadsheet rows by outcome (created, duplicate, error)",
			},
			[]string{"outcome"},
		),
		ImportBatchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flightlog_import_batch_commit_seconds",
				Help:    "Time to commit one import batch including checkpoint advance",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		ImportSessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "flightlog_import_sessions_active",
				Help: "Import sessions currently open",
			},
		),

		CatalogEntitiesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightlog_catalog_entities_created_total",
				Help: "Reference entities inserted by catalog flushes",
			},
			[]string{"domain"},
		),
		CatalogCacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightlog_catalog_cache_misses_total",
				Help: "Catalog lookups that staged a new entity",
			},
			[]string{"domain"},
		),

		BackfillRecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightlog_backfill_records_total",
				Help: "Records processed by coordinate backfill sweeps by outcome (resolved, sentinel)",
			},
			[]string{"outcome"},
		),
		BackfillSweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flightlog_backfill_sweep_seconds",
				Help:    "Coordinate backfill sweep execution time in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}

// The helpers below are safe on a nil *Registry so components can run without metrics.

func (m *Registry) ObserveImportRows(created, duplicate, failed int) {
	if m == nil {
		return
	}
	m.ImportRowsTotal.WithLabelValues("created").Add(float64(created))
	m.ImportRowsTotal.WithLabelValues("duplicate").Add(float64(duplicate))
	m.ImportRowsTotal.WithLabelValues("error").Add(float64(failed))
}

func (m *Registry) ObserveBatchCommit(started time.Time) {
	if m == nil {
		return
	}
	m.ImportBatchDuration.Observe(time.Since(started).Seconds())
}

func (m *Registry) SessionOpened() {
	if m == nil {
		return
	}
	m.ImportSessionsActive.Inc()
}

func (m *Registry) SessionClosed() {
	if m == nil {
		return
	}
	m.ImportSessionsActive.Dec()
}

func (m *Registry) CatalogCreated(domain string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CatalogEntitiesCreated.WithLabelValues(domain).Add(float64(n))
}

func (m *Registry) CatalogMiss(domain string) {
	if m == nil {
		return
	}
	m.CatalogCacheMisses.WithLabelValues(domain).Inc()
}

func (m *Registry) ObserveBackfill(started time.Time, resolved, sentinel int) {
	if m == nil {
		return
	}
	m.BackfillSweepDuration.Observe(time.Since(started).Seconds())
	m.BackfillRecordsTotal.WithLabelValues("resolved").Add(float64(resolved))
	m.BackfillRecordsTotal.WithLabelValues("sentinel").Add(float64(sentinel))
}
