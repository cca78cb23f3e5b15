// Package telemetry provides application-level observability for HelpOrbit.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<HO_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Invitation state transitions by outcome
//   - Ticket operations
//   - In-process cache hits and misses, and tag revalidations
//   - Outbound email by kind and result
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/orgs/:slug/tickets/:id)
// rather than the raw request URL, so slugs and ids never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
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

// InvitationTransitionsTotal counts invitation lifecycle calls by transition
// (create, resend, accept, reject, cancel) and outcome, where outcome is "ok"
// or the error code returned to the client (expired, wrong_user, ...).
//
// Example PromQL queries:
//   - Acceptance failures by reason:  sum by (outcome) (rate(invitation_transitions_total{transition="accept",outcome!="ok"}[1h]))
var InvitationTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "invitation_transitions_total",
		Help: "Total number of invitation lifecycle operations, by transition and outcome.",
	},
	[]string{"transition", "outcome"},
)

// TicketOperationsTotal counts successful ticket mutations by action
var TicketOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ticket_operations_total",
		Help: "Total number of ticket mutations, by action.",
	},
	[]string{"action"},
)

// Cache metrics. CacheRequestsTotal has labels {cache, result} where result is
// "hit" or "miss"; RevalidationsTotal counts revalidated tags by tag kind
// (organization, members, invitations, tickets, user).
var (
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of in-process cache lookups, by cache and result.",
		},
		[]string{"cache", "result"},
	)

	RevalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_revalidations_total",
			Help: "Total number of revalidated cache tags, by tag kind.",
		},
		[]string{"kind"},
	)
)

// EmailsSentTotal counts outbound email by kind (invitation, verification,
// password_reset) and result (sent, failed). A rising failed series means
// invitations exist whose email never went out.
var EmailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of outbound emails, by kind and result.",
	},
	[]string{"kind", "result"},
)

// CleanupPurgedRowsTotal counts rows removed by the background cleanup job,
// by table.
var CleanupPurgedRowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cleanup_purged_rows_total",
		Help: "Total number of rows removed by the cleanup job, by table.",
	},
	[]string{"table"},
)

// DBOpenConnections tracks the number of open connections held by the pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples the connection pool every 30 seconds until ctx
// is cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
