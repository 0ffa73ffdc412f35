// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the store with the Prometheus client library,
exposing metrics for monitoring performance, errors, and system health.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:4010/metrics

# Available Metrics

Metadata-store metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table, error_type
  - duckdb_connection_failovers_total: Endpoint failovers (counter)
  - duckdb_active_endpoint_index: Connected endpoint index (gauge)
  - duckdb_batch_rows_inserted_total: Rows written via batch insert (counter)
    Labels: table

API metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_errors_total: Taxonomy errors surfaced to clients (counter)
    Labels: code, severity

Object-store metrics:
  - objectstore_operations_total: Object-store calls (counter)
    Labels: operation, result
  - objectstore_operation_duration_seconds: Call latency (histogram)
    Labels: operation
  - presigned_urls_minted_total: Presigned URLs issued (counter)
    Labels: method (GET or PUT)

Segment pipeline metrics:
  - segments_registered_total: Registered segments (counter)
  - segments_deleted_total: Deleted segment rows (counter)
    Labels: mode (sync or async)
  - storage_allocation_slots: Upload slots per allocation (histogram)

Deletion worker metrics:
  - flow_delete_requests_total: Requests reaching a terminal state (counter)
    Labels: status (completed or failed)
  - flow_delete_requests_pending: Pending requests (gauge)
  - flow_delete_drain_duration_seconds: Full drain duration (histogram)

Circuit breaker metrics:
  - circuit_breaker_state: Current state (gauge; 0=closed, 1=half-open, 2=open)
  - circuit_breaker_transitions_total: State transitions (counter)
  - circuit_breaker_requests_total: Requests by result (counter)

# Usage Example

	import (
	    "github.com/tomtom215/tamstore/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordAPIRequest("GET", "/flows", "200", 23*time.Millisecond)
	    metrics.RecordDBQuery("select", "segments", 5*time.Millisecond)
	}
*/
package metrics
