// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/metrics"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/objectstore"
)

// AllocateStorage handles POST /flows/{flowID}/storage, the first phase of
// the segment pipeline: it mints upload slots with presigned PUT URLs and
// writes nothing to the metadata store. Named object IDs must not exist
// yet; an empty body mints the default number of fresh IDs.
func (h *Handler) AllocateStorage(w http.ResponseWriter, r *http.Request) {
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

	var req models.FlowStorageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondServiceError(w, r, models.NewBadRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	if err := validateRequest(&req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.checkStorageBackend(r, req.StorageID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	objectIDs, err := h.allocationObjectIDs(r, &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if h.store == nil {
		h.respondServiceError(w, r, models.NewStorageUnavailable(fmt.Errorf("no object store configured")))
		return
	}

	now := time.Now().UTC()
	slots := make([]models.MediaObject, 0, len(objectIDs))
	for _, objectID := range objectIDs {
		key := objectstore.SegmentKey(h.storagePrefix(), now, objectID)
		url, err := h.store.PresignPut(r.Context(), key, h.presignTTL())
		if err != nil {
			if objectstore.IsUnavailable(err) {
				h.respondServiceError(w, r, models.NewStorageUnavailable(err))
			} else {
				h.respondServiceError(w, r, models.NewStorageError(err))
			}
			return
		}
		slots = append(slots, models.MediaObject{
			ObjectID: objectID,
			PutURL:   models.PresignedPut{URL: url},
		})
	}

	metrics.StorageAllocations.Observe(float64(len(slots)))
	respondData(w, http.StatusCreated, models.FlowStorageResponse{MediaObjects: slots}, start)
}

// checkStorageBackend validates an explicit storage_id against the
// catalog. An unknown backend is a bad request, not a missing resource:
// the flow exists, the request named a backend that does not.
func (h *Handler) checkStorageBackend(r *http.Request, storageID *uuid.UUID) error {
	if storageID == nil {
		return nil
	}
	if _, err := h.repos.Backends.Get(r.Context(), *storageID); err != nil {
		if se, ok := models.AsServiceError(err); ok && se.Code == models.CodeNotFound {
			return models.NewBadRequest(fmt.Sprintf("storage backend %s is not registered", storageID))
		}
		return err
	}
	return nil
}

// allocationObjectIDs resolves the slot IDs for one allocation: the
// caller's object_ids verified as fresh, or limit minted UUIDs.
func (h *Handler) allocationObjectIDs(r *http.Request, req *models.FlowStorageRequest) ([]string, error) {
	maxLimit := 100
	if h.cfg != nil && h.cfg.TAMS.AllocationMaxLimit > 0 {
		maxLimit = h.cfg.TAMS.AllocationMaxLimit
	}

	if len(req.ObjectIDs) > 0 {
		if len(req.ObjectIDs) > maxLimit {
			return nil, models.NewBadRequest(fmt.Sprintf(
				"cannot allocate %d objects in one request (limit %d)", len(req.ObjectIDs), maxLimit))
		}
		for _, objectID := range req.ObjectIDs {
			if strings.TrimSpace(objectID) == "" {
				return nil, models.NewValidation("object_ids", "must not contain empty IDs")
			}
		}
		existing, err := h.repos.Objects.ExistingIDs(r.Context(), req.ObjectIDs)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, models.NewBadRequest(fmt.Sprintf(
				"object ID(s) already exist: %s", strings.Join(existing, ", ")))
		}
		return req.ObjectIDs, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
		if h.cfg != nil && h.cfg.TAMS.AllocationDefaultLimit > 0 {
			limit = h.cfg.TAMS.AllocationDefaultLimit
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	ids := make([]string, limit)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids, nil
}
