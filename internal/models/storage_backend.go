// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreTypeHTTPObjectStore is the only store type currently issued.
const StoreTypeHTTPObjectStore = "http_object_store"

// StorageBackend is one entry of the process-wide catalog of known
// object-store endpoints. GET URLs are decorated with the backend's
// metadata so clients can tell which store serves the bytes. At most one
// backend carries default_storage=true, and one default always exists.
type StorageBackend struct {
	ID               uuid.UUID `json:"id"`
	StoreType        string    `json:"store_type" validate:"required"`
	Provider         string    `json:"provider,omitempty"`
	StoreProduct     string    `json:"store_product,omitempty"`
	Region           *string   `json:"region,omitempty"`
	AvailabilityZone *string   `json:"availability_zone,omitempty"`
	Label            *string   `json:"label,omitempty"`
	DefaultStorage   bool      `json:"default_storage"`
	Created          time.Time `json:"created"`
}
