package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// Tests inject a fresh prometheus.Registry so the default one stays clean.
type serverMetrics struct {
	// queryRequestsTotal counts POST /query requests by outcome:
	// "ok", "bad_request", "timeout" or "error".
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records POST /query latency by outcome.
	queryDurationSeconds *prometheus.HistogramVec

	// retrievedRecords records how many records informed each answer.
	retrievedRecords prometheus.Histogram

	// throttledTotal counts questions refused by the per-guest limiter.
	throttledTotal prometheus.Counter

	// panicsTotal counts handler panics caught by the recovery middleware.
	panicsTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests by method, handler and code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cottagebot",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cottagebot",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /query requests, retrieval plus generation.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		retrievedRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cottagebot",
			Subsystem: "query",
			Name:      "retrieved_records",
			Help:      "Number of cottage records retrieved per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),

		throttledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cottagebot",
			Subsystem: "query",
			Name:      "throttled_total",
			Help:      "Total number of /query requests refused with 429.",
		}),

		panicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cottagebot",
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Total number of handler panics recovered by the server.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cottagebot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cottagebot",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
