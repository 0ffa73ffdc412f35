// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

// deleteRequestBody is the POST /flow-delete-requests payload. An empty
// timerange requests deletion of the flow's entire segment set.
type deleteRequestBody struct {
	FlowID      uuid.UUID `json:"flow_id" validate:"required"`
	TimeRange   string    `json:"timerange"`
	Description *string   `json:"description,omitempty"`
}

// CreateDeleteRequest handles POST /flow-delete-requests. Requests are
// idempotent on (flow_id, timerange): re-posting an equivalent pair
// returns the existing request with 200 instead of 201.
func (h *Handler) CreateDeleteRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body deleteRequestBody
	if err := decodeJSON(r, &body); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validateRequest(&body); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	exists, err := h.repos.Flows.Exists(r.Context(), body.FlowID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !exists {
		h.respondServiceError(w, r, models.NewNotFound("flow", body.FlowID.String()))
		return
	}

	request, created, err := h.repos.Deletes.Create(r.Context(), body.FlowID, body.TimeRange, body.Description)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respondData(w, status, request, start)
}

// GetDeleteRequest handles GET /flow-delete-requests/{requestID}, the
// polling endpoint for async deletion progress.
func (h *Handler) GetDeleteRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "requestID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	request, err := h.repos.Deletes.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, request, start)
}

// ListDeleteRequests handles GET /flow-delete-requests with an optional
// status filter.
func (h *Handler) ListDeleteRequests(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := r.URL.Query().Get("status")
	switch status {
	case "", models.DeleteStatusPending, models.DeleteStatusInProgress,
		models.DeleteStatusCompleted, models.DeleteStatusFailed:
	default:
		h.respondServiceError(w, r, models.NewValidation("status",
			fmt.Sprintf("unknown status %q", status)))
		return
	}

	page, limit := parsePagination(r)
	requests, err := h.repos.Deletes.List(r.Context(), status, limit+1, page*limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	requests, hasMore := trimPage(requests, limit)
	writePagingHeaders(w, page, limit, hasMore)
	respondData(w, http.StatusOK, models.DeleteRequestListResponse{
		Requests:   requests,
		Pagination: pageInfo(page, limit, len(requests), hasMore),
	}, start)
}
