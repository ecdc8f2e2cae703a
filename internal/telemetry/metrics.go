// Package telemetry provides application-level observability for the admin
// backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<TVK_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns data in the Prometheus text
// exposition format and is intended to be scraped every 15–60 seconds. It is
// NOT served by the Gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/admin/models/:entity/records) rather than the raw request URL to
// prevent unbounded label cardinality from user-supplied path segments such
// as record IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
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

// Admin operation metrics — recorded by the admin API handlers for every
// CRUD operation against the catalog.
//
// AdminOperationsTotal is a CounterVec with labels {entity, action, outcome}.
// "action" is one of list/get/create/update/delete/bulk_delete/import and
// "outcome" is "ok" or "error".
//
// Example PromQL queries:
//   - Mutations per entity:  sum by (entity) (rate(admin_operations_total{action!~"list|get"}[1h]))
//   - Failure rate:          sum(rate(admin_operations_total{outcome="error"}[5m]))
var AdminOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_operations_total",
		Help: "Total number of admin data operations, by entity type, action, and outcome.",
	},
	[]string{"entity", "action", "outcome"},
)

// Reference check metrics.
//
// ReferenceCheckFailuresTotal counts cross-entity reference validations that
// found a dangling or malformed reference, by the entity type being written.
// A spike here usually means the bot and the dashboard disagree about a
// recently deleted record.
var ReferenceCheckFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reference_check_failures_total",
		Help: "Total number of record writes rejected by the reference checker, by entity type.",
	},
	[]string{"entity"},
)

// AuditShipFailuresTotal counts audit entries that could not be delivered to
// an external shipper, by shipper type ("webhook", "file"). The database row
// for the entry is unaffected; shipping is best-effort.
var AuditShipFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "audit_ship_failures_total",
		Help: "Total number of audit entries that failed external delivery, by shipper type.",
	},
	[]string{"shipper"},
)

// InventoryShardOpensTotal counts physical shard collection opens, labelled
// by whether the handle came from the resolver cache. A low hit ratio means
// the shard handle cache is undersized for the active owner set.
var InventoryShardOpensTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inventory_shard_opens_total",
		Help: "Total number of inventory shard opens, by cache outcome (hit or miss).",
	},
	[]string{"outcome"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB connection pool. It is sampled every 30
// seconds by StartDBStatsCollector rather than per-request to avoid the
// overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after the database connection succeeds in
// main.go.
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
