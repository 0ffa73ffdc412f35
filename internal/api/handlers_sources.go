// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/validation"
)

// ListSources handles GET /sources with label and format filters.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filters := models.SourceFilters{
		Label:  r.URL.Query().Get("label"),
		Format: r.URL.Query().Get("format"),
	}
	if filters.Format != "" {
		if err := validation.ContentFormat("format", filters.Format); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}

	page, limit := parsePagination(r)
	sources, err := h.repos.Sources.List(r.Context(), filters, limit+1, page*limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	sources, hasMore := trimPage(sources, limit)
	writePagingHeaders(w, page, limit, hasMore)
	respondData(w, http.StatusOK, models.SourceListResponse{
		Sources:    sources,
		Pagination: pageInfo(page, limit, len(sources), hasMore),
	}, start)
}

// CreateSource handles POST /sources. The client supplies the source ID;
// re-creating an existing ID is a conflict.
func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var src models.Source
	if err := decodeJSON(r, &src); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validateRequest(&src); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validation.ContentFormat("format", src.Format); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.Create(r.Context(), &src); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, &src, start)
}

// GetSource handles GET /sources/{sourceID}.
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	src, err := h.repos.Sources.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, src, start)
}

// DeleteSource handles DELETE /sources/{sourceID}. Without cascade=true the
// delete is refused while dependent flows exist.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	cascade := getBoolParam(r, "cascade")
	if deletedBy := r.URL.Query().Get("deleted_by"); deletedBy != "" {
		logging.Ctx(r.Context()).Debug().
			Str("source_id", id.String()).
			Str("deleted_by", sanitizeLogValue(deletedBy)).
			Msg("Source deletion requested")
	}

	if err := h.repos.Sources.Delete(r.Context(), id, cascade); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, nil, start)
}

// GetSourceTags handles GET /sources/{sourceID}/tags.
func (h *Handler) GetSourceTags(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	src, err := h.fetchSource(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	tags := src.Tags
	if tags == nil {
		tags = models.Tags{}
	}
	respondData(w, http.StatusOK, tags, start)
}

// PutSourceTags handles PUT /sources/{sourceID}/tags, replacing the whole
// tag map. The body is a bare JSON object.
func (h *Handler) PutSourceTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var tags models.Tags
	if err := decodeJSON(r, &tags); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateTags(r.Context(), id, tags, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSourceTags handles DELETE /sources/{sourceID}/tags, clearing every tag.
func (h *Handler) DeleteSourceTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateTags(r.Context(), id, models.Tags{}, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSourceTag handles GET /sources/{sourceID}/tags/{name}.
func (h *Handler) GetSourceTag(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	src, err := h.fetchSource(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	value, ok := src.Tags[name]
	if !ok {
		h.respondServiceError(w, r, models.NewNotFound("tag", name))
		return
	}
	respondData(w, http.StatusOK, value, start)
}

// PutSourceTag handles PUT /sources/{sourceID}/tags/{name}. The body is a
// bare JSON string.
func (h *Handler) PutSourceTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
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
	if err := h.repos.Sources.SetTag(r.Context(), id, name, value, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSourceTag handles DELETE /sources/{sourceID}/tags/{name}.
func (h *Handler) DeleteSourceTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.repos.Sources.DeleteTag(r.Context(), id, name, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSourceDescription handles GET /sources/{sourceID}/description.
func (h *Handler) GetSourceDescription(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	src, err := h.fetchSource(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, src.Description, start)
}

// PutSourceDescription handles PUT /sources/{sourceID}/description. The
// body is a bare JSON string or null.
func (h *Handler) PutSourceDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var description *string
	if err := decodeJSON(r, &description); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateDescription(r.Context(), id, description, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSourceDescription handles DELETE /sources/{sourceID}/description.
func (h *Handler) DeleteSourceDescription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateDescription(r.Context(), id, nil, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSourceLabel handles GET /sources/{sourceID}/label.
func (h *Handler) GetSourceLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	src, err := h.fetchSource(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, src.Label, start)
}

// PutSourceLabel handles PUT /sources/{sourceID}/label. The body is a bare
// JSON string or null.
func (h *Handler) PutSourceLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var label *string
	if err := decodeJSON(r, &label); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateLabel(r.Context(), id, label, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSourceLabel handles DELETE /sources/{sourceID}/label.
func (h *Handler) DeleteSourceLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.UpdateLabel(r.Context(), id, nil, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSourceCollection handles GET /sources/{sourceID}/source_collection.
func (h *Handler) GetSourceCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	items, err := h.repos.Sources.Collections(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.CollectionItem{}
	}
	respondData(w, http.StatusOK, items, start)
}

// PutSourceCollection handles PUT /sources/{sourceID}/source_collection,
// diff-syncing the membership list. The body is a bare JSON array.
func (h *Handler) PutSourceCollection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var items []models.CollectionItem
	if err := decodeJSON(r, &items); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Sources.SyncCollections(r.Context(), id, items, getStringPtrParam(r, "updated_by")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	synced, err := h.repos.Sources.Collections(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if synced == nil {
		synced = []models.CollectionItem{}
	}
	respondData(w, http.StatusOK, synced, start)
}

// fetchSource resolves the sourceID path parameter to its entity.
func (h *Handler) fetchSource(r *http.Request) (*models.Source, error) {
	id, err := parseUUIDParam(r, "sourceID")
	if err != nil {
		return nil, err
	}
	return h.repos.Sources.Get(r.Context(), id)
}
