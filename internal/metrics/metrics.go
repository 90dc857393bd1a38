package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperengineering/farmcost/internal/types"
)

const namespace = "farmcost"

// Metrics owns a private Prometheus registry and the service's collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	ingestRows   *prometheus.CounterVec
	ingestRuns   *prometheus.CounterVec
	logins       *prometheus.CounterVec
	tableMissing *prometheus.GaugeVec
	totalMissing prometheus.Gauge
	backups      *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ingestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Tuples seen by survey ingest, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Survey ingest runs by kind and result.",
		}, []string{"kind", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		tableMissing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_missing_values",
			Help:      "Missing cells per reference table at the last data-quality report.",
		}, []string{"table"}),
		totalMissing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_values",
			Help:      "Missing cells across all reference tables at the last data-quality report.",
		}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Database backups by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests,
		m.apiLatency,
		m.ingestRows,
		m.ingestRuns,
		m.logins,
		m.tableMissing,
		m.totalMissing,
		m.backups,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAPI records one finished HTTP request.
func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

// ObserveIngest records the outcome of an ingest run. A nil result with an
// error counts as a failed run.
func (m *Metrics) ObserveIngest(kind string, res *types.IngestResult, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ingestRuns.WithLabelValues(kind, "error").Inc()
		return
	}
	m.ingestRuns.WithLabelValues(kind, "ok").Inc()
	if res == nil {
		return
	}
	m.ingestRows.WithLabelValues(kind, "inserted").Add(float64(res.Inserted))
	m.ingestRows.WithLabelValues(kind, "skipped").Add(float64(res.Skipped))
	m.ingestRows.WithLabelValues(kind, "existing").Add(float64(res.Existing()))
}

// ObserveLogin counts a login attempt.
func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "success"
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveQuality sets the data-quality gauges from a report.
func (m *Metrics) ObserveQuality(r *types.QualityReport) {
	if m == nil || r == nil {
		return
	}
	for table, q := range r.Tables {
		m.tableMissing.WithLabelValues(table).Set(float64(q.TotalMissing))
	}
	m.totalMissing.Set(float64(r.TotalMissing))
}

// ObserveBackup counts a backup attempt.
func (m *Metrics) ObserveBackup(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backups.WithLabelValues(result).Inc()
}
