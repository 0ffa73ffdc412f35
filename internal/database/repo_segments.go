// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/objectstore"
	"github.com/tomtom215/tamstore/internal/timerange"
)

// PayloadStore is the slice of the object-store adapter the segment
// pipeline needs: inline uploads and size discovery. *objectstore.Store
// satisfies it; tests substitute an in-memory fake.
type PayloadStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Head(ctx context.Context, key string) (*objectstore.ObjectInfo, error)
}

// SegmentRepo persists segment rows and performs the registration step of
// the segment pipeline: object row, reference row, segment row, and the
// flow's segments_updated bump, in that order.
type SegmentRepo struct {
	db        *DB
	integrity *Integrity
	objects   *ObjectRepo
	store     PayloadStore // nil disables inline uploads
}

// NewSegmentRepo constructs a segment repository.
func NewSegmentRepo(db *DB, integrity *Integrity, objects *ObjectRepo, store PayloadStore) *SegmentRepo {
	return &SegmentRepo{db: db, integrity: integrity, objects: objects, store: store}
}

// Create registers a segment carrying inline payload bytes: the bytes are
// written to the segment's storage path first, then the metadata rows.
func (r *SegmentRepo) Create(ctx context.Context, flowID uuid.UUID, seg *models.Segment, data []byte, contentType string) error {
	if len(data) == 0 {
		return r.CreateMetadataOnly(ctx, flowID, seg)
	}
	if r.store == nil {
		return models.NewStorageUnavailable(fmt.Errorf("no object store configured for inline upload"))
	}
	if seg.StoragePath == "" {
		return models.NewBadRequest("segment storage path is not set")
	}

	if err := r.store.Put(ctx, seg.StoragePath, data, contentType); err != nil {
		if objectstore.IsUnavailable(err) {
			return models.NewStorageUnavailable(err)
		}
		return models.NewStorageError(err)
	}
	return r.register(ctx, flowID, seg, int64(len(data)))
}

// CreateMetadataOnly registers a segment whose bytes were already uploaded
// through a presigned URL. The object size comes from a HEAD on the
// storage path; an unreachable HEAD degrades to size 0 rather than
// failing a registration whose upload already succeeded.
func (r *SegmentRepo) CreateMetadataOnly(ctx context.Context, flowID uuid.UUID, seg *models.Segment) error {
	var size int64
	if r.store != nil && seg.StoragePath != "" {
		info, err := r.store.Head(ctx, seg.StoragePath)
		switch {
		case err == nil:
			size = info.Size
		case objectstore.IsNotFound(err):
			size = 0
		default:
			logging.Warn().Err(err).
				Str("object_id", seg.ObjectID).
				Msg("HEAD on segment payload failed; recording size 0")
		}
	}
	return r.register(ctx, flowID, seg, size)
}

// GetByFlow returns a flow's segments, optionally narrowed to those
// overlapping a time range, ordered by range start.
func (r *SegmentRepo) GetByFlow(ctx context.Context, flowID uuid.UUID, rangeFilter string) ([]models.Segment, error) {
	var filter *timerange.Range
	if rangeFilter != "" {
		parsed, err := timerange.Parse(rangeFilter)
		if err != nil {
			return nil, models.NewValidation("timerange", err.Error())
		}
		filter = &parsed
	}

	rows, err := r.db.Query(ctx, TableSegments, Where().Eq("flow_id", flowID.String()), 0)
	if err != nil {
		return nil, translateStoreError(err)
	}

	type keyed struct {
		seg models.Segment
		lo  timerange.Timestamp
	}
	matched := make([]keyed, 0, len(rows))
	for _, row := range rows {
		seg, err := segmentFromRow(row)
		if err != nil {
			return nil, models.NewInternal(err)
		}
		segRange, err := timerange.Parse(seg.TimeRange)
		if err != nil {
			return nil, models.NewInternal(fmt.Errorf("stored segment %s has invalid timerange %q: %w", seg.ObjectID, seg.TimeRange, err))
		}
		if filter != nil && !segRange.Overlaps(*filter) {
			continue
		}
		matched = append(matched, keyed{seg: *seg, lo: segRange.Lo})
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].lo.Before(matched[j].lo)
	})

	segments := make([]models.Segment, len(matched))
	for i := range matched {
		segments[i] = matched[i].seg
	}
	return segments, nil
}

// GetByObject returns every segment referencing an object, across flows.
func (r *SegmentRepo) GetByObject(ctx context.Context, objectID string) ([]models.Segment, error) {
	rows, err := r.db.QueryOrdered(ctx, TableSegments, Where().Eq("object_id", objectID), "created", false, 0, 0)
	if err != nil {
		return nil, translateStoreError(err)
	}

	segments := make([]models.Segment, 0, len(rows))
	for _, row := range rows {
		seg, err := segmentFromRow(row)
		if err != nil {
			return nil, models.NewInternal(err)
		}
		segments = append(segments, *seg)
	}
	return segments, nil
}

// CountByFlow counts a flow's segments, honoring an optional range filter.
func (r *SegmentRepo) CountByFlow(ctx context.Context, flowID uuid.UUID, rangeFilter string) (int64, error) {
	if rangeFilter == "" {
		n, err := r.db.Count(ctx, TableSegments, Where().Eq("flow_id", flowID.String()))
		if err != nil {
			return 0, translateStoreError(err)
		}
		return n, nil
	}

	segments, err := r.GetByFlow(ctx, flowID, rangeFilter)
	if err != nil {
		return 0, err
	}
	return int64(len(segments)), nil
}

// Delete removes a flow's segments overlapping the range (all segments
// when the range is empty), dropping orphaned reference rows with them.
func (r *SegmentRepo) Delete(ctx context.Context, flowID uuid.UUID, rangeFilter string) (int64, []string, error) {
	return r.integrity.DeleteSegments(ctx, flowID, rangeFilter)
}

// DeleteBatch removes at most limit segments overlapping the range,
// earliest first. The async drainer calls it repeatedly until it reports
// zero.
func (r *SegmentRepo) DeleteBatch(ctx context.Context, flowID uuid.UUID, rangeFilter string, limit int) (int64, error) {
	return r.integrity.DeleteSegmentsBatch(ctx, flowID, rangeFilter, limit)
}

// register writes the metadata triple for one segment.
func (r *SegmentRepo) register(ctx context.Context, flowID uuid.UUID, seg *models.Segment, size int64) error {
	flowRows, err := r.db.Query(ctx, TableFlows, Where().Eq("id", flowID.String()), 1)
	if err != nil {
		return translateStoreError(err)
	}
	if len(flowRows) == 0 {
		return models.NewNotFound("flow", flowID.String())
	}
	if decodeBool(flowRows[0]["read_only"]) {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", flowID))
	}

	parsed, err := timerange.Parse(seg.TimeRange)
	if err != nil {
		return models.NewValidation("timerange", err.Error())
	}
	seg.TimeRange = parsed.String()
	seg.FlowID = flowID
	if seg.Created.IsZero() {
		seg.Created = time.Now().UTC()
	}

	if _, err := r.objects.Ensure(ctx, seg.ObjectID, size); err != nil {
		return err
	}

	if err := r.db.InsertRecord(ctx, TableSegments, segmentToRow(seg)); err != nil {
		if isConstraintViolation(err) {
			return models.NewBadRequest(fmt.Sprintf(
				"segment for object %s with timerange %s is already registered on flow %s",
				seg.ObjectID, seg.TimeRange, flowID))
		}
		return translateStoreError(err)
	}

	if err := r.objects.AddReference(ctx, seg.ObjectID, flowID); err != nil {
		return err
	}

	if _, err := r.db.Update(ctx, TableFlows,
		Row{"segments_updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", flowID.String())); err != nil {
		return translateStoreError(err)
	}

	metrics.SegmentsRegistered.Inc()
	return nil
}

func segmentToRow(seg *models.Segment) Row {
	return Row{
		"object_id":       seg.ObjectID,
		"flow_id":         seg.FlowID.String(),
		"timerange":       seg.TimeRange,
		"ts_offset":       nullableString(seg.TSOffset),
		"last_duration":   nullableString(seg.LastDuration),
		"sample_offset":   nullable(seg.SampleOffset),
		"sample_count":    nullable(seg.SampleCount),
		"key_frame_count": nullable(seg.KeyFrameCount),
		"storage_path":    seg.StoragePath,
		"created":         encodeTime(seg.Created),
	}
}

func segmentFromRow(row Row) (*models.Segment, error) {
	flowID, err := decodeUUID(row["flow_id"])
	if err != nil {
		return nil, err
	}
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, err
	}
	return &models.Segment{
		ObjectID:      decodeString(row["object_id"]),
		FlowID:        flowID,
		TimeRange:     decodeString(row["timerange"]),
		TSOffset:      decodeStringPtr(row["ts_offset"]),
		LastDuration:  decodeStringPtr(row["last_duration"]),
		SampleOffset:  decodeInt64Ptr(row["sample_offset"]),
		SampleCount:   decodeInt64Ptr(row["sample_count"]),
		KeyFrameCount: decodeInt64Ptr(row["key_frame_count"]),
		StoragePath:   decodeString(row["storage_path"]),
		Created:       created,
	}, nil
}
