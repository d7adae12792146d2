// Package metrics exposes the service's Prometheus collectors. They register
// with the default registry and are served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Recommendations
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation requests by outcome (ok, empty, invalid, unavailable)",
		},
		[]string{"outcome"},
	)

	RecommendationSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_movies",
			Help:    "Number of movies returned per recommendation",
			Buckets: []float64{0, 1, 3, 5, 10, 15, 20},
		},
	)

	// History
	HistoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_operations_total",
			Help: "History store operations by result",
		},
		[]string{"operation", "result"},
	)

	HistorySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_subscribers_active",
			Help: "Current number of live history subscriptions",
		},
	)

	HistoryPartitions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_partitions_active",
			Help: "Current number of per-user partitions held in memory",
		},
	)

	// Catalog
	CatalogFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_fetch_duration_seconds",
			Help:    "Time spent loading the catalog snapshot for a match",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordRequest observes one finished HTTP request.
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordHistoryOp counts a history operation as ok or error.
func RecordHistoryOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	HistoryOperations.WithLabelValues(op, result).Inc()
}
