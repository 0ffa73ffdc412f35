// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestServiceInfo(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/service", nil)
	checkHTTPStatus(t, w, http.StatusOK)

	var info models.ServiceInfo
	decodeData(t, w, &info)
	checkStringEqual(t, "name", info.Name, "tamstore")
	checkStringEqual(t, "type", info.Type, "urn:x-tams:service:api")
	checkStringEqual(t, "api version", info.APIVersion, "7.0")
	checkStringEqual(t, "service version", info.ServiceVersion, "1.0.0")
}

func TestStorageBackendCRUD(t *testing.T) {
	env := setupTestEnv(t)

	// The harness seeds one default backend.
	w := env.do(t, http.MethodGet, "/service/storage-backends", nil)
	checkHTTPStatus(t, w, http.StatusOK)
	var backends []models.StorageBackend
	decodeData(t, w, &backends)
	checkLenEqual(t, "seeded backends", len(backends), 1)
	checkTrue(t, "seeded default", backends[0].DefaultStorage)
	checkStringEqual(t, "seeded provider", backends[0].Provider, "minio")
	defaultID := backends[0].ID

	label := "archive"
	w = env.do(t, http.MethodPost, "/service/storage-backends", models.StorageBackend{
		StoreType: models.StoreTypeHTTPObjectStore,
		Provider:  "aws",
		Label:     &label,
	})
	checkHTTPStatus(t, w, http.StatusCreated)
	var created models.StorageBackend
	decodeData(t, w, &created)
	checkFalse(t, "created default", created.DefaultStorage)
	if created.ID == uuid.Nil {
		t.Fatal("Expected a minted backend ID")
	}

	w = env.do(t, http.MethodGet, "/service/storage-backends", nil)
	decodeData(t, w, &backends)
	checkLenEqual(t, "backends after create", len(backends), 2)

	relabel := "cold archive"
	w = env.do(t, http.MethodPut, "/service/storage-backends/"+created.ID.String(), models.StorageBackend{
		StoreType: models.StoreTypeHTTPObjectStore,
		Provider:  "aws",
		Label:     &relabel,
	})
	checkHTTPStatus(t, w, http.StatusOK)
	var updated models.StorageBackend
	decodeData(t, w, &updated)
	if updated.Label == nil || *updated.Label != relabel {
		t.Errorf("Expected label %q, got %v", relabel, updated.Label)
	}

	// The default backend decorates every stored segment's GET URLs.
	w = env.do(t, http.MethodDelete, "/service/storage-backends/"+defaultID.String(), nil)
	checkErrorEnvelope(t, w, http.StatusConflict, models.CodeConflict)

	w = env.do(t, http.MethodDelete, "/service/storage-backends/"+created.ID.String(), nil)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodGet, "/service/storage-backends", nil)
	decodeData(t, w, &backends)
	checkLenEqual(t, "backends after delete", len(backends), 1)
}

func TestStorageBackendDefaultPromotion(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/service/storage-backends", nil)
	var backends []models.StorageBackend
	decodeData(t, w, &backends)
	seededID := backends[0].ID

	// A new default demotes the seeded one.
	w = env.do(t, http.MethodPost, "/service/storage-backends", models.StorageBackend{
		StoreType:      models.StoreTypeHTTPObjectStore,
		Provider:       "aws",
		DefaultStorage: true,
	})
	checkHTTPStatus(t, w, http.StatusCreated)
	var promoted models.StorageBackend
	decodeData(t, w, &promoted)
	checkTrue(t, "promoted default", promoted.DefaultStorage)

	w = env.do(t, http.MethodGet, "/service/storage-backends", nil)
	decodeData(t, w, &backends)
	defaults := 0
	for _, backend := range backends {
		if backend.DefaultStorage {
			defaults++
			checkStringEqual(t, "default id", backend.ID.String(), promoted.ID.String())
		}
	}
	checkIntEqual(t, "default count", defaults, 1)

	// The demoted backend is now removable; the new default is not.
	w = env.do(t, http.MethodDelete, "/service/storage-backends/"+seededID.String(), nil)
	checkHTTPStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodDelete, "/service/storage-backends/"+promoted.ID.String(), nil)
	checkErrorEnvelope(t, w, http.StatusConflict, models.CodeConflict)
}

func TestStorageBackendErrors(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPut, "/service/storage-backends/"+uuid.New().String(), models.StorageBackend{
		StoreType: models.StoreTypeHTTPObjectStore,
	})
	checkErrorEnvelope(t, w, http.StatusNotFound, models.CodeNotFound)

	w = env.do(t, http.MethodDelete, "/service/storage-backends/"+uuid.New().String(), nil)
	checkErrorEnvelope(t, w, http.StatusNotFound, models.CodeNotFound)

	w = env.do(t, http.MethodPut, "/service/storage-backends/not-a-uuid", models.StorageBackend{
		StoreType: models.StoreTypeHTTPObjectStore,
	})
	checkErrorEnvelope(t, w, http.StatusUnprocessableEntity, models.CodeValidation)

	w = env.doRaw(t, http.MethodPost, "/service/storage-backends", "application/json", []byte(`{not json`))
	checkErrorEnvelope(t, w, http.StatusBadRequest, models.CodeBadRequest)
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	checkHTTPStatus(t, w, http.StatusOK)

	var health models.HealthStatus
	decodeData(t, w, &health)
	checkStringEqual(t, "status", health.Status, "ok")
	checkStringEqual(t, "version", health.Version, "1.0.0")
}

func TestHealthReadyWithoutObjectStore(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health/ready", nil)
	checkHTTPStatus(t, w, http.StatusServiceUnavailable)

	var readiness models.ReadinessStatus
	decodeData(t, w, &readiness)
	checkFalse(t, "ready", readiness.Ready)
	checkLenEqual(t, "checks", len(readiness.Checks), 2)

	for _, check := range readiness.Checks {
		switch check.Name {
		case "metadata_store":
			checkTrue(t, "metadata check", check.OK)
		case "object_store":
			checkFalse(t, "object store check", check.OK)
			checkStringEqual(t, "object store error", check.Error, "not configured")
		default:
			t.Errorf("Unexpected readiness check %q", check.Name)
		}
	}
}
