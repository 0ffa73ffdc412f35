// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package api

import (
	"time"

	"github.com/tomtom215/tamstore/internal/audit"
	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/database"
	"github.com/tomtom215/tamstore/internal/objectstore"
)

const (
	serviceName        = "tamstore"
	serviceDescription = "Time-addressable media store"
	serviceType        = "urn:x-tams:service:api"
	apiVersion         = "7.0"
	serviceVersion     = "1.0.0"
)

// Repos bundles the entity repositories the handlers dispatch into.
type Repos struct {
	Sources  *database.SourceRepo
	Flows    *database.FlowRepo
	Objects  *database.ObjectRepo
	Segments *database.SegmentRepo
	Deletes  *database.FlowDeleteRequestRepo
	Backends *database.StorageBackendRepo
}

// Handler carries the dependencies shared by all endpoint methods.
// Handlers validate input, call one repository or store operation, and
// serialize the result; every business rule lives below this layer.
type Handler struct {
	db        *database.DB
	repos     Repos
	store     *objectstore.Store
	cfg       *config.Config
	audit     *audit.Recorder
	startTime time.Time
}

// NewHandler wires the API handlers. The audit recorder may be nil, which
// disables error-audit persistence but nothing else.
func NewHandler(db *database.DB, repos Repos, store *objectstore.Store, cfg *config.Config, recorder *audit.Recorder) *Handler {
	return &Handler{
		db:        db,
		repos:     repos,
		store:     store,
		cfg:       cfg,
		audit:     recorder,
		startTime: time.Now(),
	}
}

// presignTTL returns the configured presigned-URL lifetime.
func (h *Handler) presignTTL() time.Duration {
	if h.cfg != nil && h.cfg.TAMS.PresignTTLSeconds > 0 {
		return time.Duration(h.cfg.TAMS.PresignTTLSeconds) * time.Second
	}
	return objectstore.DefaultPresignTTL
}

// storagePrefix returns the object-store key prefix for segment payloads.
func (h *Handler) storagePrefix() string {
	if h.cfg != nil && h.cfg.TAMS.StoragePath != "" {
		return h.cfg.TAMS.StoragePath
	}
	return "tams"
}
