// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"
)

// APIResponse represents the standardized response wrapper used by all HTTP
// endpoints. It provides consistent structure for both successful and error
// responses, with metadata for observability.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"id": "550e8400-e29b-41d4-a716-446655440000", ...},
//	  "metadata": {
//	    "timestamp": "2026-02-11T12:00:00Z",
//	    "query_time_ms": 4
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "CONFLICT",
//	    "message": "source has 3 dependent flows"
//	  },
//	  "metadata": {"timestamp": "2026-02-11T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance
// tracking. QueryTimeMS is the server-side processing time in milliseconds.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the wire representation of a ServiceError.
//
// Fields:
//   - Code: machine-readable taxonomy code (e.g. "NOT_FOUND", "CONFLICT")
//   - Message: human-readable error message
//   - Details: additional context (field paths, dependent entity IDs)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginationInfo carries paging metadata on list responses.
//
// Fields:
//   - Page: zero-based page index (from request)
//   - Limit: maximum results per page (from request, clamped to 1000)
//   - Count: number of results on this page
//   - HasMore: whether another page exists beyond this one
type PaginationInfo struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// SourceListResponse is the data payload of GET /sources.
type SourceListResponse struct {
	Sources    []Source       `json:"sources"`
	Pagination PaginationInfo `json:"pagination"`
}

// FlowListResponse is the data payload of GET /flows.
type FlowListResponse struct {
	Flows      []Flow         `json:"flows"`
	Pagination PaginationInfo `json:"pagination"`
}

// SegmentListResponse is the data payload of GET /flows/{id}/segments.
// Segment listings are range-scoped rather than paginated: the timerange
// query parameter bounds the result set.
type SegmentListResponse struct {
	Segments []Segment `json:"segments"`
}

// SegmentDeleteResponse is the data payload of a synchronous
// DELETE /flows/{id}/segments.
type SegmentDeleteResponse struct {
	SegmentsDeleted int64 `json:"segments_deleted"`
}

// ObjectListResponse is the data payload of GET /objects.
type ObjectListResponse struct {
	Objects    []Object       `json:"objects"`
	Pagination PaginationInfo `json:"pagination"`
}

// DeleteRequestListResponse is the data payload of GET /flow-delete-requests.
type DeleteRequestListResponse struct {
	Requests   []FlowDeleteRequest `json:"flow_delete_requests"`
	Pagination PaginationInfo      `json:"pagination"`
}
