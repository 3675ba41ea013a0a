// ================================
// internal/metrics/metrics.go - Self-monitoring for MIRADOR-WATCHDOG
// ================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_watchdog_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_watchdog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Evaluation metrics
	SlicesClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_watchdog_slices_classified_total",
			Help: "Total number of slices classified, by period and anomaly type",
		},
		[]string{"period", "anomaly_type"},
	)

	SliceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_watchdog_slice_errors_total",
			Help: "Per-slice errors collected during evaluation",
		},
		[]string{"stage"}, // validate, impact, assemble
	)

	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_watchdog_evaluation_duration_seconds",
			Help:    "Time to evaluate one scope",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"period", "status"},
	)

	RCANodes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_watchdog_rca_nodes",
			Help:    "Number of RCA nodes per scope before and after pruning",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		},
		[]string{"stage"}, // built, pruned
	)

	// Catalogue metrics
	CatalogueReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_watchdog_catalogue_reloads_total",
			Help: "Relationship catalogue reload attempts",
		},
		[]string{"result"},
	)

	// Result cache metrics
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_watchdog_cache_operations_total",
			Help: "Result cache operations",
		},
		[]string{"operation", "result"},
	)
)
