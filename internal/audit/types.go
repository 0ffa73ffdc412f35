// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package audit

import (
	"context"
	"time"
)

// Event is one persisted error-audit record.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the error reached the HTTP layer.
	Timestamp time.Time `json:"timestamp"`

	// Code is the taxonomy code, e.g. STORAGE_UNAVAILABLE.
	Code string `json:"code"`

	// Severity is high or critical; lower grades are not persisted.
	Severity string `json:"severity"`

	// Method and Path identify the failing request.
	Method string `json:"method"`
	Path   string `json:"path"`

	// RequestID correlates the event with the request log.
	RequestID string `json:"request_id,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`
}

// Store persists error-audit events.
type Store interface {
	// Save persists one event.
	Save(ctx context.Context, event *Event) error

	// Recent returns the newest events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// CountBySeverity returns event counts grouped by severity.
	CountBySeverity(ctx context.Context) (map[string]int64, error)

	// Prune deletes events older than the cutoff and reports how many.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
