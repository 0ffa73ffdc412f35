// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/objectstore"
	"github.com/tomtom215/tamstore/internal/validation"
)

// maxInlineUploadBytes bounds the multipart memory buffer for inline
// segment uploads. Larger payloads belong on the presigned PUT path.
const maxInlineUploadBytes = 64 << 20

// ListSegments handles GET /flows/{flowID}/segments. Every returned
// segment carries freshly presigned GET URLs decorated with the default
// storage backend's metadata; nothing here is cacheable.
func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	exists, err := h.repos.Flows.Exists(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !exists {
		h.respondServiceError(w, r, models.NewNotFound("flow", id.String()))
		return
	}

	segments, err := h.repos.Segments.GetByFlow(r.Context(), id, r.URL.Query().Get("timerange"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if h.store != nil && len(segments) > 0 {
		backend, err := h.repos.Backends.Default(r.Context())
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		for i := range segments {
			h.attachGetURLs(r, &segments[i], backend)
		}
	}

	respondData(w, http.StatusOK, models.SegmentListResponse{Segments: segments}, start)
}

// CreateSegment handles POST /flows/{flowID}/segments. The body is either
// application/json with the segment metadata (bytes already uploaded via a
// presigned PUT), or multipart/form-data with a segment_data JSON field
// and an optional file part carrying inline payload bytes.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "flowID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	seg, data, contentType, err := h.decodeSegmentRequest(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if err := validateRequest(seg); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if _, err := validation.TimeRange("timerange", seg.TimeRange); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if seg.StoragePath == "" {
		seg.StoragePath = h.resolveStoragePath(r, seg.ObjectID, len(data) > 0)
	}

	if len(data) > 0 {
		err = h.repos.Segments.Create(r.Context(), id, seg, data, contentType)
	} else {
		err = h.repos.Segments.CreateMetadataOnly(r.Context(), id, seg)
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, seg, start)
}

// DeleteSegments handles DELETE /flows/{flowID}/segments. Deletions at or
// under the async threshold run inline and answer 200; larger ones are
// promoted to a flow-delete-request and answer 202 with the queued request.
func (h *Handler) DeleteSegments(w http.ResponseWriter, r *http.Request) {
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
	if flow.ReadOnly {
		h.respondServiceError(w, r, models.NewForbidden(fmt.Sprintf("flow %s is read-only", id)))
		return
	}

	rangeFilter := r.URL.Query().Get("timerange")
	if rangeFilter != "" {
		if _, err := validation.TimeRange("timerange", rangeFilter); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}

	count, err := h.repos.Segments.CountByFlow(r.Context(), id, rangeFilter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if count > h.asyncDeleteThreshold() {
		request, _, err := h.repos.Deletes.Create(r.Context(), id, rangeFilter, nil)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		respondData(w, http.StatusAccepted, request, start)
		return
	}

	deleted, _, err := h.repos.Segments.Delete(r.Context(), id, rangeFilter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	metrics.RecordSegmentsDeleted("sync", deleted)
	respondData(w, http.StatusOK, models.SegmentDeleteResponse{SegmentsDeleted: deleted}, start)
}

// decodeSegmentRequest parses either registration body shape. It returns
// the segment metadata plus inline payload bytes and their content type
// when a multipart file part is present.
func (h *Handler) decodeSegmentRequest(r *http.Request) (*models.Segment, []byte, string, error) {
	var seg models.Segment

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(r, &seg); err != nil {
			return nil, nil, "", err
		}
		return &seg, nil, "", nil
	}

	if err := r.ParseMultipartForm(maxInlineUploadBytes); err != nil {
		return nil, nil, "", models.NewBadRequest(fmt.Sprintf("invalid multipart form: %v", err))
	}

	raw := r.FormValue("segment_data")
	if raw == "" {
		return nil, nil, "", models.NewValidation("segment_data", "is required")
	}
	if err := json.Unmarshal([]byte(raw), &seg); err != nil {
		return nil, nil, "", models.NewBadRequest(fmt.Sprintf("invalid segment_data JSON: %v", err))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return &seg, nil, "", nil
		}
		return nil, nil, "", models.NewBadRequest(fmt.Sprintf("invalid file part: %v", err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, "", models.NewBadRequest(fmt.Sprintf("failed to read file part: %v", err))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	} else if err := validation.MIMEType("content_type", contentType); err != nil {
		return nil, nil, "", err
	}

	return &seg, data, contentType, nil
}

// resolveStoragePath picks the object-store key for a registration that
// did not name one. An object already registered elsewhere keeps its key;
// otherwise the key is derived from today's date, probing yesterday's when
// the upload landed before midnight and registration arrived after.
func (h *Handler) resolveStoragePath(r *http.Request, objectID string, inline bool) string {
	existing, err := h.repos.Segments.GetByObject(r.Context(), objectID)
	if err == nil {
		for _, prior := range existing {
			if prior.StoragePath != "" {
				return prior.StoragePath
			}
		}
	}

	now := time.Now().UTC()
	key := objectstore.SegmentKey(h.storagePrefix(), now, objectID)
	if inline || h.store == nil {
		return key
	}

	if _, err := h.store.Head(r.Context(), key); err == nil {
		return key
	} else if !objectstore.IsNotFound(err) {
		return key
	}

	yesterday := objectstore.SegmentKey(h.storagePrefix(), now.AddDate(0, 0, -1), objectID)
	if _, err := h.store.Head(r.Context(), yesterday); err == nil {
		return yesterday
	}
	return key
}

// attachGetURLs presigns a download URL for one segment and decorates it
// with the backend catalog metadata. A presign failure degrades the
// segment to no URLs rather than failing the listing.
func (h *Handler) attachGetURLs(r *http.Request, seg *models.Segment, backend *models.StorageBackend) {
	key := seg.StoragePath
	if key == "" {
		key = objectstore.SegmentKey(h.storagePrefix(), seg.Created, seg.ObjectID)
	}

	url, err := h.store.PresignGet(r.Context(), key, h.presignTTL())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("object_id", seg.ObjectID).
			Msg("Failed to presign GET URL for segment")
		return
	}

	getURL := models.GetURL{
		URL:        url,
		Presigned:  true,
		Controlled: true,
	}
	if backend != nil {
		getURL.StorageID = backend.ID.String()
		getURL.StoreType = backend.StoreType
		getURL.Provider = backend.Provider
		getURL.StoreProduct = backend.StoreProduct
		if backend.Region != nil {
			getURL.Region = *backend.Region
		}
		if backend.AvailabilityZone != nil {
			getURL.AvailabilityZone = *backend.AvailabilityZone
		}
		if backend.Label != nil {
			getURL.Label = *backend.Label
		}
	}
	seg.GetURLs = []models.GetURL{getURL}
}

// asyncDeleteThreshold returns the segment count above which a deletion is
// promoted to the async queue.
func (h *Handler) asyncDeleteThreshold() int64 {
	if h.cfg != nil && h.cfg.TAMS.AsyncDeleteThreshold > 0 {
		return int64(h.cfg.TAMS.AsyncDeleteThreshold)
	}
	return 500
}
