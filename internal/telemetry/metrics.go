// Package telemetry provides application-level observability for the mosque directory service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<LM_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Record Source request counters and latency, by collection and operation
//   - Mosque query composition latency and attachment failures
//   - Audit write failures and recovered background panics
//   - Response cache hits and misses
//   - Database connection pool gauge (polled every 30 s, postgres driver only)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/mosques/:id) and
// Record Source metrics use the collection name, never a record id, so label
// cardinality stays bounded.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Record Source metrics, recorded by every Record Source adapter.
//
// RecordSourceRequestsTotal has labels {collection, operation, outcome}; outcome is
// "ok", "client_error", "server_error" or "network_error". A growing client_error
// rate on operation="list" usually means a rejected sort being retried without sort.
//
// Example PromQL queries:
//   - Failure ratio:  sum(rate(record_source_requests_total{outcome!="ok"}[5m])) / sum(rate(record_source_requests_total[5m]))
//   - Slowest collection (p95): histogram_quantile(0.95, sum by (collection, le) (rate(record_source_request_duration_seconds_bucket[5m])))
var (
	RecordSourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_source_requests_total",
			Help: "Total number of Record Source requests, by collection, operation, and outcome.",
		},
		[]string{"collection", "operation", "outcome"},
	)

	RecordSourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_source_request_duration_seconds",
			Help:    "Histogram of Record Source request latencies, by collection and operation.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"collection", "operation"},
	)
)

// Mosque query metrics.
//
// MosqueQueryDuration has label {mode} ("paged" or "all") and covers the whole
// composition pipeline including attachment requests.
//
// AttachmentFailuresTotal has label {kind} ("amenities" or "activities"). Attachment
// failures are invisible to users, so alert on this counter instead:
//
//	increase(attachment_failures_total[15m]) > 10
var (
	MosqueQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosque_query_duration_seconds",
			Help:    "Duration of a full mosque listing composition, by mode.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	AttachmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_failures_total",
			Help: "Total number of non-fatal related-record attachment failures, by kind.",
		},
		[]string{"kind"},
	)
)

// AuditWriteFailuresTotal counts audit entries that could not be written to the
// audit_logs collection. The primary mutation still succeeds in that case.
var AuditWriteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Total number of audit log entries that failed to persist.",
	},
)

// BackgroundPanicsTotal counts panics recovered in fire-and-forget goroutines,
// labelled by task name (e.g. "audit_ship").
var BackgroundPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_panics_total",
		Help: "Total number of panics recovered in background tasks.",
	},
	[]string{"task"},
)

// Cache metrics, labelled by logical cache name (e.g. "mosques", "submissions").
//
// Example PromQL queries:
//   - Hit ratio: sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))
var (
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of response cache hits, by cache name.",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of response cache misses, by cache name.",
		},
		[]string{"cache"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and closes the pool.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

// ObserveRecordSource records one Record Source request. It is a helper for
// adapters so they share label values.
func ObserveRecordSource(collection, operation, outcome string, started time.Time) {
	RecordSourceRequestsTotal.WithLabelValues(collection, operation, outcome).Inc()
	RecordSourceRequestDuration.WithLabelValues(collection, operation).Observe(time.Since(started).Seconds())
}
