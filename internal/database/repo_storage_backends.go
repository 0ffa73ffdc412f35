// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/models"
)

// StorageBackendRepo maintains the process-wide catalog of object-store
// endpoints. The catalog decorates every GET URL, so reads come from an
// in-memory copy guarded by a lock; writes go through the database and
// then refresh the copy.
type StorageBackendRepo struct {
	db *DB

	mu      sync.RWMutex
	byID    map[uuid.UUID]models.StorageBackend
	ordered []uuid.UUID
}

// NewStorageBackendRepo constructs an unloaded registry; call Load or
// EnsureDefault before serving reads.
func NewStorageBackendRepo(db *DB) *StorageBackendRepo {
	return &StorageBackendRepo{db: db, byID: make(map[uuid.UUID]models.StorageBackend)}
}

// Load refreshes the in-memory catalog from the database.
func (r *StorageBackendRepo) Load(ctx context.Context) error {
	rows, err := r.db.QueryOrdered(ctx, TableStorageBackends, nil, "created", false, 0, 0)
	if err != nil {
		return translateStoreError(err)
	}

	byID := make(map[uuid.UUID]models.StorageBackend, len(rows))
	ordered := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		backend, err := storageBackendFromRow(row)
		if err != nil {
			return models.NewInternal(err)
		}
		byID[backend.ID] = *backend
		ordered = append(ordered, backend.ID)
	}

	r.mu.Lock()
	r.byID = byID
	r.ordered = ordered
	r.mu.Unlock()
	return nil
}

// EnsureDefault guarantees the catalog holds exactly one default backend.
// An empty catalog gets one seeded from configuration; a catalog whose
// defaults were all removed out-of-band promotes its oldest entry.
func (r *StorageBackendRepo) EnsureDefault(ctx context.Context, configuredID, provider, region, label string) error {
	if err := r.Load(ctx); err != nil {
		return err
	}

	r.mu.RLock()
	count := len(r.ordered)
	var defaultID uuid.UUID
	var hasDefault bool
	for _, id := range r.ordered {
		if r.byID[id].DefaultStorage {
			defaultID, hasDefault = id, true
			break
		}
	}
	var oldest uuid.UUID
	if count > 0 {
		oldest = r.ordered[0]
	}
	r.mu.RUnlock()

	if hasDefault {
		logging.Debug().Str("backend_id", defaultID.String()).Msg("Default storage backend present")
		return nil
	}

	if count > 0 {
		logging.Warn().Str("backend_id", oldest.String()).Msg("No default storage backend; promoting oldest")
		if _, err := r.db.Update(ctx, TableStorageBackends,
			Row{"default_storage": true}, Where().Eq("id", oldest.String())); err != nil {
			return translateStoreError(err)
		}
		return r.Load(ctx)
	}

	id := uuid.New()
	if configuredID != "" {
		parsed, err := uuid.Parse(configuredID)
		if err != nil {
			return models.NewValidation("default_storage_backend_id", err.Error())
		}
		id = parsed
	}

	var regionPtr, labelPtr *string
	if region != "" {
		regionPtr = &region
	}
	if label == "" {
		label = "default"
	}
	labelPtr = &label

	backend := &models.StorageBackend{
		ID:             id,
		StoreType:      models.StoreTypeHTTPObjectStore,
		Provider:       provider,
		Region:         regionPtr,
		Label:          labelPtr,
		DefaultStorage: true,
	}
	logging.Info().Str("backend_id", id.String()).Msg("Seeding default storage backend")
	return r.Create(ctx, backend)
}

// List returns the catalog in creation order.
func (r *StorageBackendRepo) List(ctx context.Context) ([]models.StorageBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backends := make([]models.StorageBackend, 0, len(r.ordered))
	for _, id := range r.ordered {
		backends = append(backends, r.byID[id])
	}
	return backends, nil
}

// Get fetches one backend by ID.
func (r *StorageBackendRepo) Get(ctx context.Context, id uuid.UUID) (*models.StorageBackend, error) {
	r.mu.RLock()
	backend, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return nil, models.NewNotFound("storage backend", id.String())
	}
	return &backend, nil
}

// Default returns the backend carrying default_storage.
func (r *StorageBackendRepo) Default(ctx context.Context) (*models.StorageBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.ordered {
		if backend := r.byID[id]; backend.DefaultStorage {
			return &backend, nil
		}
	}
	return nil, models.NewInternal(fmt.Errorf("no default storage backend registered"))
}

// Create adds a backend. A new default demotes the previous one.
func (r *StorageBackendRepo) Create(ctx context.Context, backend *models.StorageBackend) error {
	if backend.ID == uuid.Nil {
		backend.ID = uuid.New()
	}
	if backend.StoreType == "" {
		backend.StoreType = models.StoreTypeHTTPObjectStore
	}
	if backend.Created.IsZero() {
		backend.Created = time.Now().UTC()
	}

	if backend.DefaultStorage {
		if err := r.demoteDefaults(ctx); err != nil {
			return err
		}
	}

	if err := r.db.InsertRecord(ctx, TableStorageBackends, storageBackendToRow(backend)); err != nil {
		if isConstraintViolation(err) {
			return models.NewConflict(fmt.Sprintf("storage backend %s already exists", backend.ID))
		}
		return translateStoreError(err)
	}
	return r.Load(ctx)
}

// Update replaces a backend record, keeping the single-default invariant.
func (r *StorageBackendRepo) Update(ctx context.Context, backend *models.StorageBackend) error {
	if _, err := r.Get(ctx, backend.ID); err != nil {
		return err
	}

	if backend.DefaultStorage {
		if err := r.demoteDefaults(ctx); err != nil {
			return err
		}
	}

	row := storageBackendToRow(backend)
	delete(row, "id")
	delete(row, "created")

	count, err := r.db.Update(ctx, TableStorageBackends, row, Where().Eq("id", backend.ID.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("storage backend", backend.ID.String())
	}
	return r.Load(ctx)
}

// Delete removes a backend. The default backend is undeletable: every
// stored segment's GET URLs are decorated from it, so removing it would
// orphan those references.
func (r *StorageBackendRepo) Delete(ctx context.Context, id uuid.UUID) error {
	backend, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if backend.DefaultStorage {
		return models.NewConflict(fmt.Sprintf("storage backend %s is the default and is referenced by stored segments", id))
	}

	if _, err := r.db.Delete(ctx, TableStorageBackends, Where().Eq("id", id.String())); err != nil {
		return translateStoreError(err)
	}
	return r.Load(ctx)
}

func (r *StorageBackendRepo) demoteDefaults(ctx context.Context) error {
	_, err := r.db.Update(ctx, TableStorageBackends,
		Row{"default_storage": false}, Where().Eq("default_storage", true))
	if err != nil {
		return translateStoreError(err)
	}
	return nil
}

func storageBackendToRow(backend *models.StorageBackend) Row {
	return Row{
		"id":                backend.ID.String(),
		"store_type":        backend.StoreType,
		"provider":          backend.Provider,
		"store_product":     backend.StoreProduct,
		"region":            nullableString(backend.Region),
		"availability_zone": nullableString(backend.AvailabilityZone),
		"label":             nullableString(backend.Label),
		"default_storage":   backend.DefaultStorage,
		"created":           encodeTime(backend.Created),
	}
}

func storageBackendFromRow(row Row) (*models.StorageBackend, error) {
	id, err := decodeUUID(row["id"])
	if err != nil {
		return nil, err
	}
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, err
	}
	return &models.StorageBackend{
		ID:               id,
		StoreType:        decodeString(row["store_type"]),
		Provider:         decodeString(row["provider"]),
		StoreProduct:     decodeString(row["store_product"]),
		Region:           decodeStringPtr(row["region"]),
		AvailabilityZone: decodeStringPtr(row["availability_zone"]),
		Label:            decodeStringPtr(row["label"]),
		DefaultStorage:   decodeBool(row["default_storage"]),
		Created:          created,
	}, nil
}
