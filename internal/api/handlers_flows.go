// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/validation"
)

// ListFlows handles GET /flows. Filters: source_id, timerange, format,
// codec, label, frame_width, frame_height.
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filters, err := parseFlowFilters(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	page, limit := parsePagination(r)
	flows, err := h.repos.Flows.List(r.Context(), filters, limit+1, page*limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	flows, hasMore := trimPage(flows, limit)
	writePagingHeaders(w, page, limit, hasMore)
	respondData(w, http.StatusOK, models.FlowListResponse{
		Flows:      flows,
		Pagination: pageInfo(page, limit, len(flows), hasMore),
	}, start)
}

// CreateFlow handles POST /flows. The variant is fixed by the format URN
// and essence fields of other variants are refused.
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var flow models.Flow
	if err := decodeJSON(r, &flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validateRequest(&flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validation.ContentFormat("format", flow.Format); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := flow.ValidateVariant(); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.Create(r.Context(), &flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, &flow, start)
}

// GetFlow handles GET /flows/{flowID}, reconstructing the variant shape.
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	flow, err := h.repos.Flows.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow, start)
}

// UpdateFlow handles PUT /flows/{flowID}. Read-only flows refuse the
// update; the read_only flag itself is toggled through its sub-field.
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var flow models.Flow
	if err := decodeJSON(r, &flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	flow.ID = id
	if err := validateRequest(&flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validation.ContentFormat("format", flow.Format); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := flow.ValidateVariant(); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.Update(r.Context(), &flow); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, &flow, start)
}

// DeleteFlow handles DELETE /flows/{flowID}. Cascade removes the flow's
// segments and orphaned references; objects always survive.
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.Delete(r.Context(), id, getBoolParam(r, "cascade")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, nil, start)
}

// GetFlowTags handles GET /flows/{flowID}/tags.
func (h *Handler) GetFlowTags(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	tags := flow.Tags
	if tags == nil {
		tags = models.Tags{}
	}
	respondData(w, http.StatusOK, tags, start)
}

// PutFlowTags handles PUT /flows/{flowID}/tags with a bare JSON object body.
func (h *Handler) PutFlowTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var tags models.Tags
	if err := decodeJSON(r, &tags); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateTags(r.Context(), id, tags, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowTags handles DELETE /flows/{flowID}/tags.
func (h *Handler) DeleteFlowTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateTags(r.Context(), id, models.Tags{}, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowTag handles GET /flows/{flowID}/tags/{name}.
func (h *Handler) GetFlowTag(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	value, ok := flow.Tags[name]
	if !ok {
		h.respondServiceError(w, r, models.NewNotFound("tag", name))
		return
	}
	respondData(w, http.StatusOK, value, start)
}

// PutFlowTag handles PUT /flows/{flowID}/tags/{name} with a bare JSON
// string body.
func (h *Handler) PutFlowTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var value string
	if err := decodeJSON(r, &value); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.repos.Flows.SetTag(r.Context(), id, name, value, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowTag handles DELETE /flows/{flowID}/tags/{name}.
func (h *Handler) DeleteFlowTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.repos.Flows.DeleteTag(r.Context(), id, name, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowDescription handles GET /flows/{flowID}/description.
func (h *Handler) GetFlowDescription(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow.Description, start)
}

// PutFlowDescription handles PUT /flows/{flowID}/description.
func (h *Handler) PutFlowDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var description *string
	if err := decodeJSON(r, &description); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateDescription(r.Context(), id, description, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowDescription handles DELETE /flows/{flowID}/description.
func (h *Handler) DeleteFlowDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateDescription(r.Context(), id, nil, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowLabel handles GET /flows/{flowID}/label.
func (h *Handler) GetFlowLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow.Label, start)
}

// PutFlowLabel handles PUT /flows/{flowID}/label.
func (h *Handler) PutFlowLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var label *string
	if err := decodeJSON(r, &label); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateLabel(r.Context(), id, label, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowLabel handles DELETE /flows/{flowID}/label.
func (h *Handler) DeleteFlowLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateLabel(r.Context(), id, nil, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowReadOnly handles GET /flows/{flowID}/read_only.
func (h *Handler) GetFlowReadOnly(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow.ReadOnly, start)
}

// PutFlowReadOnly handles PUT /flows/{flowID}/read_only with a bare JSON
// boolean body. Flipping read_only is the one mutation a frozen flow accepts.
func (h *Handler) PutFlowReadOnly(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var readOnly bool
	if err := decodeJSON(r, &readOnly); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.SetReadOnly(r.Context(), id, readOnly); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowReadOnly handles DELETE /flows/{flowID}/read_only, unfreezing
// the flow.
func (h *Handler) DeleteFlowReadOnly(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.SetReadOnly(r.Context(), id, false); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowMaxBitRate handles GET /flows/{flowID}/max_bit_rate.
func (h *Handler) GetFlowMaxBitRate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow.MaxBitRate, start)
}

// PutFlowMaxBitRate handles PUT /flows/{flowID}/max_bit_rate with a bare
// JSON number body.
func (h *Handler) PutFlowMaxBitRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rate, err := decodeBitRate(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateMaxBitRate(r.Context(), id, rate); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowMaxBitRate handles DELETE /flows/{flowID}/max_bit_rate.
func (h *Handler) DeleteFlowMaxBitRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateMaxBitRate(r.Context(), id, nil); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowAvgBitRate handles GET /flows/{flowID}/avg_bit_rate.
func (h *Handler) GetFlowAvgBitRate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, flow.AvgBitRate, start)
}

// PutFlowAvgBitRate handles PUT /flows/{flowID}/avg_bit_rate.
func (h *Handler) PutFlowAvgBitRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rate, err := decodeBitRate(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateAvgBitRate(r.Context(), id, rate); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFlowAvgBitRate handles DELETE /flows/{flowID}/avg_bit_rate.
func (h *Handler) DeleteFlowAvgBitRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.UpdateAvgBitRate(r.Context(), id, nil); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlowCollection handles GET /flows/{flowID}/flow_collection.
func (h *Handler) GetFlowCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	flow, err := h.fetchFlow(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	members := flow.FlowCollection
	if members == nil {
		members = []uuid.UUID{}
	}
	respondData(w, http.StatusOK, members, start)
}

// PutFlowCollection handles PUT /flows/{flowID}/flow_collection with a bare
// JSON array of flow IDs. Only multi-format flows carry members.
func (h *Handler) PutFlowCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var members []uuid.UUID
	if err := decodeJSON(r, &members); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.SyncFlowCollection(r.Context(), id, members, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	flow, err := h.repos.Flows.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	synced := flow.FlowCollection
	if synced == nil {
		synced = []uuid.UUID{}
	}
	respondData(w, http.StatusOK, synced, start)
}

// DeleteFlowCollection handles DELETE /flows/{flowID}/flow_collection,
// emptying the member list.
func (h *Handler) DeleteFlowCollection(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Flows.SyncFlowCollection(r.Context(), id, nil, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fetchFlow resolves the flowID path parameter to its entity.
func (h *Handler) fetchFlow(r *http.Request) (*models.Flow, error) {
	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		return nil, err
	}
	return h.repos.Flows.Get(r.Context(), id)
}

// decodeBitRate reads a bare JSON number body for the bit-rate sub-fields.
func decodeBitRate(r *http.Request) (*int64, error) {
	var rate *int64
	if err := decodeJSON(r, &rate); err != nil {
		return nil, err
	}
	if rate != nil && *rate < 0 {
		return nil, models.NewValidation("bit_rate", "must not be negative")
	}
	return rate, nil
}

// parseFlowFilters assembles the flow listing filters from query parameters.
func parseFlowFilters(r *http.Request) (models.FlowFilters, error) {
	filters := models.FlowFilters{
		Format:    r.URL.Query().Get("format"),
		Codec:     r.URL.Query().Get("codec"),
		Label:     r.URL.Query().Get("label"),
		TimeRange: r.URL.Query().Get("timerange"),
	}

	if filters.Format != "" {
		if err := validation.ContentFormat("format", filters.Format); err != nil {
			return filters, err
		}
	}

	if raw := r.URL.Query().Get("source_id"); raw != "" {
		if err := validation.UUID("source_id", raw); err != nil {
			return filters, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, models.NewValidation("source_id", err.Error())
		}
		filters.SourceID = &id
	}

	for _, dim := range []struct {
		key  string
		dest **int64
	}{
		{"frame_width", &filters.FrameWidth},
		{"frame_height", &filters.FrameHeight},
	} {
		raw := r.URL.Query().Get(dim.key)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filters, models.NewValidation(dim.key, "must be an integer")
		}
		*dim.dest = &n
	}

	return filters, nil
}
