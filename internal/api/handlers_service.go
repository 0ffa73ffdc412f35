// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/tamstore/internal/models"
)

// GetService handles GET /service, the store's self-description.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	respondData(w, http.StatusOK, models.ServiceInfo{
		Name:           serviceName,
		Description:    serviceDescription,
		Type:           serviceType,
		APIVersion:     apiVersion,
		ServiceVersion: serviceVersion,
	}, start)
}

// ListStorageBackends handles GET /service/storage-backends.
func (h *Handler) ListStorageBackends(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	backends, err := h.repos.Backends.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, backends, start)
}

// CreateStorageBackend handles POST /service/storage-backends. A new
// default backend demotes the previous one, keeping exactly one default.
func (h *Handler) CreateStorageBackend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var backend models.StorageBackend
	if err := decodeJSON(r, &backend); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Backends.Create(r.Context(), &backend); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, &backend, start)
}

// UpdateStorageBackend handles PUT /service/storage-backends/{backendID}.
func (h *Handler) UpdateStorageBackend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseUUIDParam(r, "backendID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var backend models.StorageBackend
	if err := decodeJSON(r, &backend); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	backend.ID = id

	if err := h.repos.Backends.Update(r.Context(), &backend); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	updated, err := h.repos.Backends.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, updated, start)
}

// DeleteStorageBackend handles DELETE /service/storage-backends/{backendID}.
// The default backend is undeletable while segments reference it.
func (h *Handler) DeleteStorageBackend(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "backendID")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.repos.Backends.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health, the liveness probe: the process is up.
// Dependency state belongs to the readiness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	respondData(w, http.StatusOK, models.HealthStatus{
		Status:        "ok",
		Version:       serviceVersion,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, start)
}

// HealthReady handles GET /health/ready. Ready means the metadata store
// answers a ping and the object-store bucket is reachable; anything less
// is a 503 so load balancers hold traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	checks := make([]models.ReadinessCheck, 0, 2)

	metadata := models.ReadinessCheck{Name: "metadata_store", OK: true}
	if h.db == nil {
		metadata.OK = false
		metadata.Error = "not configured"
	} else if err := h.db.Ping(r.Context()); err != nil {
		metadata.OK = false
		metadata.Error = err.Error()
	}
	checks = append(checks, metadata)

	objects := models.ReadinessCheck{Name: "object_store", OK: true}
	if h.store == nil {
		objects.OK = false
		objects.Error = "not configured"
	} else if err := h.store.Ping(r.Context()); err != nil {
		objects.OK = false
		objects.Error = err.Error()
	}
	checks = append(checks, objects)

	ready := true
	for _, check := range checks {
		if !check.OK {
			ready = false
			break
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, models.ReadinessStatus{Ready: ready, Checks: checks}, start)
}
