// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the store. Collectors cover:
// - Metadata-store query performance (DuckDB)
// - API endpoint latency and throughput
// - Object-store operations and presigned URL minting
// - Segment pipeline throughput
// - Async deletion worker progress
// - Circuit breaker state on the object-store path

var (
	// Metadata-store metrics.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s .. 10s
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdb_connection_failovers_total",
			Help: "Total number of metadata endpoint failovers",
		},
	)

	DBActiveEndpoint = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_active_endpoint_index",
			Help: "Index of the metadata endpoint currently connected",
		},
	)

	DBBatchRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_batch_rows_inserted_total",
			Help: "Total number of rows written through column-oriented batch inserts",
		},
		[]string{"table"},
	)

	// API endpoint metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of API errors by taxonomy code",
		},
		[]string{"code", "severity"},
	)

	// Object-store metrics.
	ObjectStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_operations_total",
			Help: "Total number of object-store operations",
		},
		[]string{"operation", "result"}, // operation: put/get/delete/head/list/copy/presign
	)

	ObjectStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_operation_duration_seconds",
			Help:    "Object-store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PresignedURLsMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presigned_urls_minted_total",
			Help: "Total number of presigned URLs issued",
		},
		[]string{"method"}, // GET or PUT
	)

	// Segment pipeline metrics.
	SegmentsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segments_registered_total",
			Help: "Total number of segments registered",
		},
	)

	SegmentsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segments_deleted_total",
			Help: "Total number of segment rows deleted",
		},
		[]string{"mode"}, // sync or async
	)

	StorageAllocations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storage_allocation_slots",
			Help:    "Number of upload slots minted per storage allocation request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Async deletion worker metrics.
	DeleteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_delete_requests_total",
			Help: "Total number of flow-delete-requests by terminal status",
		},
		[]string{"status"}, // completed or failed
	)

	DeleteRequestsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flow_delete_requests_pending",
			Help: "Current number of pending flow-delete-requests",
		},
	)

	DeleteDrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flow_delete_drain_duration_seconds",
			Help:    "Duration of a full flow-delete-request drain in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Circuit breaker metrics (object-store path).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)
)

// RecordDBQuery records the duration of a metadata-store query.
func RecordDBQuery(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a metadata-store query error.
func RecordDBError(operation, table, errorType string) {
	DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
}

// RecordAPIRequest records an API request with its status and duration.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPIError records a taxonomy error surfaced to a client.
func RecordAPIError(code, severity string) {
	APIErrorsTotal.WithLabelValues(code, severity).Inc()
}

// RecordObjectStoreOperation records one object-store call.
func RecordObjectStoreOperation(operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ObjectStoreOperations.WithLabelValues(operation, result).Inc()
	ObjectStoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPresignedURL records a minted presigned URL.
func RecordPresignedURL(method string) {
	PresignedURLsMinted.WithLabelValues(method).Inc()
}

// RecordSegmentsDeleted records deleted segment rows.
func RecordSegmentsDeleted(mode string, count int64) {
	SegmentsDeleted.WithLabelValues(mode).Add(float64(count))
}

// RecordDeleteRequestTerminal records a flow-delete-request reaching a
// terminal status.
func RecordDeleteRequestTerminal(status string) {
	DeleteRequestsTotal.WithLabelValues(status).Inc()
}

// FormatStatusCode converts an HTTP status to its label value.
func FormatStatusCode(status int) string {
	return strconv.Itoa(status)
}
