// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/validation"
)

// ListObjects handles GET /objects, optionally narrowed to the objects a
// flow references with ?flow_id=.
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var filters models.ObjectFilters
	if raw := r.URL.Query().Get("flow_id"); raw != "" {
		if err := validation.UUID("flow_id", raw); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			h.respondServiceError(w, r, models.NewValidation("flow_id", err.Error()))
			return
		}
		filters.FlowID = &id
	}

	page, limit := parsePagination(r)
	objects, err := h.repos.Objects.List(r.Context(), filters, limit+1, page*limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	objects, hasMore := trimPage(objects, limit)
	writePagingHeaders(w, page, limit, hasMore)
	respondData(w, http.StatusOK, models.ObjectListResponse{
		Objects:    objects,
		Pagination: pageInfo(page, limit, len(objects), hasMore),
	}, start)
}

// GetObject handles GET /objects/{objectID}, materializing the flows that
// reference the object. Object IDs are opaque strings, not UUIDs.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	obj, err := h.repos.Objects.Get(r.Context(), chi.URLParam(r, "objectID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, obj, start)
}

// DeleteObject handles DELETE /objects/{objectID}. The row goes only once
// no flow references it; the stored bytes are left for an out-of-band
// sweep.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := h.repos.Objects.Delete(r.Context(), chi.URLParam(r, "objectID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
