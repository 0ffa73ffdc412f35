// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package models

import (
	"time"

	"github.com/google/uuid"
)

// FlowDeleteRequest states.
//
//	pending ─(claim)─► in_progress ─(success)─► completed
//	                            └──(error)────► failed
//
// A request reaches completed or failed exactly once. On worker shutdown,
// in_progress requests revert to pending so a later drain can reclaim them.
const (
	DeleteStatusPending    = "pending"
	DeleteStatusInProgress = "in_progress"
	DeleteStatusCompleted  = "completed"
	DeleteStatusFailed     = "failed"
)

// FlowDeleteRequest is the durable record of an in-progress bulk segment
// deletion. Requests are idempotent on (flow_id, timerange): re-posting an
// equivalent pair after completion returns the prior request untouched.
type FlowDeleteRequest struct {
	ID        uuid.UUID `json:"id"`
	FlowID    uuid.UUID `json:"flow_id" validate:"required"`
	TimeRange string    `json:"timerange" validate:"required"`
	Status    string    `json:"status"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	Description *string `json:"description,omitempty"`

	// Progress counters, updated as the worker drains batches.
	SegmentsDeleted int64 `json:"segments_deleted"`

	// Error holds the failure cause when Status is failed.
	Error *string `json:"error,omitempty"`
}
