// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/timerange"
)

// FlowDeleteRequestRepo persists the durable queue of bulk segment
// deletions. The table doubles as the coordination point between request
// handlers and the drain worker: the claim step is a conditional update,
// so two claimants can never both win a request.
type FlowDeleteRequestRepo struct {
	db *DB
}

// NewFlowDeleteRequestRepo constructs a delete-request repository.
func NewFlowDeleteRequestRepo(db *DB) *FlowDeleteRequestRepo {
	return &FlowDeleteRequestRepo{db: db}
}

// Create enqueues a deletion request, idempotent on (flow_id, timerange):
// when an equivalent request already exists, it is returned unchanged and
// created is false. An empty rangeSpec means the entire flow.
func (r *FlowDeleteRequestRepo) Create(ctx context.Context, flowID uuid.UUID, rangeSpec string, description *string) (*models.FlowDeleteRequest, bool, error) {
	canonical := ""
	if rangeSpec != "" {
		parsed, err := timerange.Parse(rangeSpec)
		if err != nil {
			return nil, false, models.NewValidation("timerange", err.Error())
		}
		canonical = parsed.String()
	}

	if existing, err := r.getByPair(ctx, flowID, canonical); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	req := &models.FlowDeleteRequest{
		ID:          uuid.New(),
		FlowID:      flowID,
		TimeRange:   canonical,
		Status:      models.DeleteStatusPending,
		Created:     now,
		Updated:     now,
		Description: description,
	}

	err := r.db.InsertRecord(ctx, TableFlowDeleteRequests, Row{
		"id":               req.ID.String(),
		"flow_id":          req.FlowID.String(),
		"timerange":        req.TimeRange,
		"status":           req.Status,
		"description":      nullableString(req.Description),
		"segments_deleted": int64(0),
		"error":            nil,
		"created":          encodeTime(req.Created),
		"updated":          encodeTime(req.Updated),
	})
	if err != nil {
		// A concurrent enqueue of the same pair wins the unique constraint;
		// hand back its row to keep the operation idempotent.
		if isConstraintViolation(err) {
			existing, getErr := r.getByPair(ctx, flowID, canonical)
			if getErr != nil {
				return nil, false, getErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, translateStoreError(err)
	}
	return req, true, nil
}

// Get fetches one request by ID.
func (r *FlowDeleteRequestRepo) Get(ctx context.Context, id uuid.UUID) (*models.FlowDeleteRequest, error) {
	rows, err := r.db.Query(ctx, TableFlowDeleteRequests, Where().Eq("id", id.String()), 1)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, models.NewNotFound("flow delete request", id.String())
	}
	return deleteRequestFromRow(rows[0])
}

// List returns requests, optionally narrowed by status, oldest first.
func (r *FlowDeleteRequestRepo) List(ctx context.Context, status string, limit, offset int) ([]models.FlowDeleteRequest, error) {
	pred := Where()
	if status != "" {
		pred.Eq("status", status)
	}

	rows, err := r.db.QueryOrdered(ctx, TableFlowDeleteRequests, pred, "created", false, limit, offset)
	if err != nil {
		return nil, translateStoreError(err)
	}

	requests := make([]models.FlowDeleteRequest, 0, len(rows))
	for _, row := range rows {
		req, err := deleteRequestFromRow(row)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

// ClaimOldestPending atomically flips the oldest pending request to
// in_progress and returns it. Returns nil with no error when the queue is
// empty or another claimant won the race; callers poll again.
func (r *FlowDeleteRequestRepo) ClaimOldestPending(ctx context.Context) (*models.FlowDeleteRequest, error) {
	rows, err := r.db.QueryOrdered(ctx, TableFlowDeleteRequests,
		Where().Eq("status", models.DeleteStatusPending), "created", false, 1, 0)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	req, err := deleteRequestFromRow(rows[0])
	if err != nil {
		return nil, err
	}

	count, err := r.db.Update(ctx, TableFlowDeleteRequests,
		Row{"status": models.DeleteStatusInProgress, "updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", req.ID.String()).Eq("status", models.DeleteStatusPending))
	if err != nil {
		return nil, translateStoreError(err)
	}
	if count == 0 {
		return nil, nil
	}

	req.Status = models.DeleteStatusInProgress
	return req, nil
}

// SetProgress records the running deletion count on an in-flight request.
func (r *FlowDeleteRequestRepo) SetProgress(ctx context.Context, id uuid.UUID, segmentsDeleted int64) error {
	return r.update(ctx, id, Row{"segments_deleted": segmentsDeleted})
}

// MarkCompleted finishes a request successfully.
func (r *FlowDeleteRequestRepo) MarkCompleted(ctx context.Context, id uuid.UUID, segmentsDeleted int64) error {
	return r.update(ctx, id, Row{
		"status":           models.DeleteStatusCompleted,
		"segments_deleted": segmentsDeleted,
		"error":            nil,
	})
}

// MarkFailed finishes a request with its failure cause. Failed requests
// are never retried automatically.
func (r *FlowDeleteRequestRepo) MarkFailed(ctx context.Context, id uuid.UUID, cause string, segmentsDeleted int64) error {
	return r.update(ctx, id, Row{
		"status":           models.DeleteStatusFailed,
		"segments_deleted": segmentsDeleted,
		"error":            cause,
	})
}

// RevertInProgress returns claimed-but-unfinished requests to pending.
// Called on worker shutdown so another drain can pick them up.
func (r *FlowDeleteRequestRepo) RevertInProgress(ctx context.Context) (int64, error) {
	count, err := r.db.Update(ctx, TableFlowDeleteRequests,
		Row{"status": models.DeleteStatusPending, "updated": encodeTime(time.Now().UTC())},
		Where().Eq("status", models.DeleteStatusInProgress))
	if err != nil {
		return 0, translateStoreError(err)
	}
	return count, nil
}

// CountByStatus sizes one status bucket, for the pending-queue gauge.
func (r *FlowDeleteRequestRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	n, err := r.db.Count(ctx, TableFlowDeleteRequests, Where().Eq("status", status))
	if err != nil {
		return 0, translateStoreError(err)
	}
	return n, nil
}

func (r *FlowDeleteRequestRepo) update(ctx context.Context, id uuid.UUID, updates Row) error {
	updates["updated"] = encodeTime(time.Now().UTC())
	count, err := r.db.Update(ctx, TableFlowDeleteRequests, updates, Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("flow delete request", id.String())
	}
	return nil
}

func (r *FlowDeleteRequestRepo) getByPair(ctx context.Context, flowID uuid.UUID, canonicalRange string) (*models.FlowDeleteRequest, error) {
	rows, err := r.db.Query(ctx, TableFlowDeleteRequests,
		Where().Eq("flow_id", flowID.String()).Eq("timerange", canonicalRange), 1)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return deleteRequestFromRow(rows[0])
}

func deleteRequestFromRow(row Row) (*models.FlowDeleteRequest, error) {
	id, err := decodeUUID(row["id"])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	flowID, err := decodeUUID(row["flow_id"])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	updated, err := decodeTime(row["updated"])
	if err != nil {
		return nil, models.NewInternal(err)
	}

	status := decodeString(row["status"])
	switch status {
	case models.DeleteStatusPending, models.DeleteStatusInProgress,
		models.DeleteStatusCompleted, models.DeleteStatusFailed:
	default:
		return nil, models.NewInternal(fmt.Errorf("flow delete request %s has unknown status %q", id, status))
	}

	return &models.FlowDeleteRequest{
		ID:              id,
		FlowID:          flowID,
		TimeRange:       decodeString(row["timerange"]),
		Status:          status,
		Created:         created,
		Updated:         updated,
		Description:     decodeStringPtr(row["description"]),
		SegmentsDeleted: decodeInt64(row["segments_deleted"]),
		Error:           decodeStringPtr(row["error"]),
	}, nil
}
