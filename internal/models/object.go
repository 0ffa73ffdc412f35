// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"

	"github.com/google/uuid"
)

// Object is an immutable payload record pointing at bytes in the object
// store. The ID is the object-store key suffix; the bytes behind it are
// write-once. ReferencedByFlows is never stored: it is materialized from
// the flow_object_references join table on every read, and the Object can
// only be deleted once that list is empty.
type Object struct {
	ID      string    `json:"id" validate:"required"`
	Size    int64     `json:"size" validate:"gte=0"`
	Created time.Time `json:"created"`

	// Derived fields, populated by the repository.
	ReferencedByFlows     []uuid.UUID `json:"referenced_by_flows,omitempty"`
	FirstReferencedByFlow *uuid.UUID  `json:"first_referenced_by_flow,omitempty"`
}

// FlowObjectReference is a row of the flow_object_references join table.
// Its existence forbids deletion of the referenced Object.
type FlowObjectReference struct {
	ObjectID string    `json:"object_id"`
	FlowID   uuid.UUID `json:"flow_id"`
	Created  time.Time `json:"created"`
}

// ObjectFilters narrow object listings.
type ObjectFilters struct {
	// FlowID keeps only objects referenced by the given flow.
	FlowID *uuid.UUID
}
