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

// FlowRepo persists Flow records. Reads reconstruct the variant from the
// stored format: essence columns belonging to a different variant are
// dropped on decode, so a row can never surface as a mixed shape.
type FlowRepo struct {
	db        *DB
	integrity *Integrity
}

// NewFlowRepo constructs a flow repository.
func NewFlowRepo(db *DB, integrity *Integrity) *FlowRepo {
	return &FlowRepo{db: db, integrity: integrity}
}

// Create inserts a new flow. The source must already exist; a duplicate
// flow ID is a Conflict.
func (r *FlowRepo) Create(ctx context.Context, flow *models.Flow) error {
	if err := r.checkSourceExists(ctx, flow.SourceID); err != nil {
		return err
	}

	now := time.Now().UTC()
	if flow.Created.IsZero() {
		flow.Created = now
	}
	flow.MetadataUpdated = now
	if flow.SegmentsUpdated.IsZero() {
		flow.SegmentsUpdated = now
	}

	row, err := flowToRow(flow)
	if err != nil {
		return models.NewInternal(err)
	}
	if err := r.db.InsertRecord(ctx, TableFlows, row); err != nil {
		if isConstraintViolation(err) {
			return models.NewConflict(fmt.Sprintf("flow %s already exists", flow.ID))
		}
		return translateStoreError(err)
	}

	if len(flow.FlowCollection) > 0 {
		if err := r.syncMembers(ctx, flow.ID, flow.FlowCollection, flow.CreatedBy); err != nil {
			return err
		}
	}
	return nil
}

// Get fetches one flow, variant-correct, with collection edges materialized.
func (r *FlowRepo) Get(ctx context.Context, id uuid.UUID) (*models.Flow, error) {
	rows, err := r.db.Query(ctx, TableFlows, Where().Eq("id", id.String()), 1)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, models.NewNotFound("flow", id.String())
	}

	flow, err := flowFromRow(rows[0])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	if err := r.attachCollections(ctx, []*models.Flow{flow}); err != nil {
		return nil, err
	}
	return flow, nil
}

// Exists reports whether a flow row is present.
func (r *FlowRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.db.Count(ctx, TableFlows, Where().Eq("id", id.String()))
	if err != nil {
		return false, translateStoreError(err)
	}
	return n > 0, nil
}

// List returns flows matching the filters, ordered by creation time. A
// timerange filter keeps only flows with at least one overlapping segment.
func (r *FlowRepo) List(ctx context.Context, filters models.FlowFilters, limit, offset int) ([]models.Flow, error) {
	var rangeFilter *timerange.Range
	if filters.TimeRange != "" {
		parsed, err := timerange.Parse(filters.TimeRange)
		if err != nil {
			return nil, models.NewValidation("timerange", err.Error())
		}
		rangeFilter = &parsed
	}

	pred := Where()
	if filters.SourceID != nil {
		pred.Eq("source_id", filters.SourceID.String())
	}
	if filters.Format != "" {
		pred.Eq("format", filters.Format)
	}
	if filters.Codec != "" {
		pred.Eq("codec", filters.Codec)
	}
	if filters.Label != "" {
		pred.Eq("label", filters.Label)
	}
	if filters.FrameWidth != nil {
		pred.Eq("frame_width", *filters.FrameWidth)
	}
	if filters.FrameHeight != nil {
		pred.Eq("frame_height", *filters.FrameHeight)
	}

	// The timerange filter cannot be pushed down, so rows are fetched
	// unbounded and paginated after the segment-overlap pass.
	fetchLimit, fetchOffset := limit, offset
	if rangeFilter != nil {
		fetchLimit, fetchOffset = 0, 0
	}

	rows, err := r.db.QueryOrdered(ctx, TableFlows, pred, "created", false, fetchLimit, fetchOffset)
	if err != nil {
		return nil, translateStoreError(err)
	}

	flows := make([]models.Flow, 0, len(rows))
	refs := make([]*models.Flow, 0, len(rows))
	for _, row := range rows {
		flow, err := flowFromRow(row)
		if err != nil {
			return nil, models.NewInternal(err)
		}
		flows = append(flows, *flow)
		refs = append(refs, &flows[len(flows)-1])
	}

	if rangeFilter != nil {
		flows, err = r.filterByTimeRange(ctx, flows, *rangeFilter)
		if err != nil {
			return nil, err
		}
		if offset >= len(flows) {
			flows = nil
		} else {
			flows = flows[offset:]
		}
		if limit > 0 && len(flows) > limit {
			flows = flows[:limit]
		}
		refs = refs[:0]
		for i := range flows {
			refs = append(refs, &flows[i])
		}
	}

	if err := r.attachCollections(ctx, refs); err != nil {
		return nil, err
	}
	return flows, nil
}

// Update replaces the stored record. Refused while the flow is read_only;
// clearing read_only goes through SetReadOnly instead.
func (r *FlowRepo) Update(ctx context.Context, flow *models.Flow) error {
	existing, err := r.Get(ctx, flow.ID)
	if err != nil {
		return err
	}
	if existing.ReadOnly {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", flow.ID))
	}
	if flow.SourceID != existing.SourceID {
		if err := r.checkSourceExists(ctx, flow.SourceID); err != nil {
			return err
		}
	}

	flow.MetadataUpdated = time.Now().UTC()
	flow.Created = existing.Created

	row, err := flowToRow(flow)
	if err != nil {
		return models.NewInternal(err)
	}
	delete(row, "id")
	delete(row, "created")
	delete(row, "created_by")

	count, err := r.db.Update(ctx, TableFlows, row, Where().Eq("id", flow.ID.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("flow", flow.ID.String())
	}
	return nil
}

// Delete removes a flow under the cascade policy.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	return r.integrity.DeleteFlow(ctx, id, cascade)
}

// SetReadOnly flips the read_only flag. This is the one mutation a
// read-only flow accepts.
func (r *FlowRepo) SetReadOnly(ctx context.Context, id uuid.UUID, readOnly bool) error {
	count, err := r.db.Update(ctx, TableFlows,
		Row{"read_only": readOnly, "metadata_updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("flow", id.String())
	}
	return nil
}

// UpdateLabel sets or clears the label.
func (r *FlowRepo) UpdateLabel(ctx context.Context, id uuid.UUID, label, updatedBy *string) error {
	return r.patch(ctx, id, Row{"label": nullableString(label), "updated_by": nullableString(updatedBy)})
}

// UpdateDescription sets or clears the description.
func (r *FlowRepo) UpdateDescription(ctx context.Context, id uuid.UUID, description, updatedBy *string) error {
	return r.patch(ctx, id, Row{"description": nullableString(description), "updated_by": nullableString(updatedBy)})
}

// UpdateTags replaces the whole tag map.
func (r *FlowRepo) UpdateTags(ctx context.Context, id uuid.UUID, tags models.Tags, updatedBy *string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return models.NewInternal(err)
	}
	return r.patch(ctx, id, Row{"tags": encoded, "updated_by": nullableString(updatedBy)})
}

// SetTag sets a single tag by name.
func (r *FlowRepo) SetTag(ctx context.Context, id uuid.UUID, name, value string, updatedBy *string) error {
	flow, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if flow.ReadOnly {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", id))
	}
	if flow.Tags == nil {
		flow.Tags = models.Tags{}
	}
	flow.Tags[name] = value
	return r.UpdateTags(ctx, id, flow.Tags, updatedBy)
}

// DeleteTag removes a single tag by name.
func (r *FlowRepo) DeleteTag(ctx context.Context, id uuid.UUID, name string, updatedBy *string) error {
	flow, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if flow.ReadOnly {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", id))
	}
	if _, ok := flow.Tags[name]; !ok {
		return models.NewNotFound("tag", name)
	}
	delete(flow.Tags, name)
	return r.UpdateTags(ctx, id, flow.Tags, updatedBy)
}

// UpdateMaxBitRate sets or clears max_bit_rate.
func (r *FlowRepo) UpdateMaxBitRate(ctx context.Context, id uuid.UUID, rate *int64) error {
	return r.patch(ctx, id, Row{"max_bit_rate": nullable(rate)})
}

// UpdateAvgBitRate sets or clears avg_bit_rate.
func (r *FlowRepo) UpdateAvgBitRate(ctx context.Context, id uuid.UUID, rate *int64) error {
	return r.patch(ctx, id, Row{"avg_bit_rate": nullable(rate)})
}

// SyncFlowCollection replaces the member list of a multi flow. Flows of
// any other variant refuse the field.
func (r *FlowRepo) SyncFlowCollection(ctx context.Context, id uuid.UUID, members []uuid.UUID, updatedBy *string) error {
	flow, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if flow.ReadOnly {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", id))
	}
	if flow.Format != models.FormatMulti {
		return models.NewBadRequest(fmt.Sprintf("flow format %s does not support flow_collection", flow.Format))
	}
	if err := r.syncMembers(ctx, id, members, updatedBy); err != nil {
		return err
	}
	return r.patch(ctx, id, Row{"updated_by": nullableString(updatedBy)})
}

// BumpSegmentsUpdated records segment-set mutation time on the flow.
func (r *FlowRepo) BumpSegmentsUpdated(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Update(ctx, TableFlows,
		Row{"segments_updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	return nil
}

func (r *FlowRepo) checkSourceExists(ctx context.Context, sourceID uuid.UUID) error {
	n, err := r.db.Count(ctx, TableSources, Where().Eq("id", sourceID.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if n == 0 {
		return models.NewValidation("source_id", fmt.Sprintf("source %s does not exist", sourceID))
	}
	return nil
}

// patch applies a partial update, refusing read-only flows.
func (r *FlowRepo) patch(ctx context.Context, id uuid.UUID, updates Row) error {
	rows, err := r.db.Query(ctx, TableFlows, Where().Eq("id", id.String()), 1)
	if err != nil {
		return translateStoreError(err)
	}
	if len(rows) == 0 {
		return models.NewNotFound("flow", id.String())
	}
	if decodeBool(rows[0]["read_only"]) {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", id))
	}

	updates["metadata_updated"] = encodeTime(time.Now().UTC())
	if _, err := r.db.Update(ctx, TableFlows, updates, Where().Eq("id", id.String())); err != nil {
		return translateStoreError(err)
	}
	return nil
}

// filterByTimeRange keeps flows with at least one segment overlapping the
// filter, resolved with one segments query across all candidates.
func (r *FlowRepo) filterByTimeRange(ctx context.Context, flows []models.Flow, filter timerange.Range) ([]models.Flow, error) {
	if len(flows) == 0 {
		return flows, nil
	}

	ids := make([]interface{}, len(flows))
	for i := range flows {
		ids[i] = flows[i].ID.String()
	}

	rows, err := r.db.Query(ctx, TableSegments, Where().In("flow_id", ids...), 0)
	if err != nil {
		return nil, translateStoreError(err)
	}

	matched := make(map[uuid.UUID]bool)
	for _, row := range rows {
		flowID, err := decodeUUID(row["flow_id"])
		if err != nil {
			return nil, models.NewInternal(err)
		}
		if matched[flowID] {
			continue
		}
		segRange, err := timerange.Parse(decodeString(row["timerange"]))
		if err != nil {
			continue
		}
		if segRange.Overlaps(filter) {
			matched[flowID] = true
		}
	}

	kept := flows[:0]
	for _, flow := range flows {
		if matched[flow.ID] {
			kept = append(kept, flow)
		}
	}
	return kept, nil
}

// syncMembers replaces the ordered member list of a multi flow.
func (r *FlowRepo) syncMembers(ctx context.Context, id uuid.UUID, members []uuid.UUID, createdBy *string) error {
	if _, err := r.db.Delete(ctx, TableFlowCollections, Where().Eq("collection_id", id.String())); err != nil {
		return translateStoreError(err)
	}

	now := encodeTime(time.Now().UTC())
	for pos, member := range members {
		err := r.db.InsertRecord(ctx, TableFlowCollections, Row{
			"collection_id": id.String(),
			"flow_id":       member.String(),
			"position":      pos,
			"created":       now,
			"created_by":    nullableString(createdBy),
		})
		if err != nil {
			return translateStoreError(err)
		}
	}
	return nil
}

// attachCollections materializes FlowCollection (members, multi only) and
// CollectedBy (reverse edge) for a batch of flows in two queries.
func (r *FlowRepo) attachCollections(ctx context.Context, flows []*models.Flow) error {
	if len(flows) == 0 {
		return nil
	}

	ids := make([]interface{}, len(flows))
	byID := make(map[uuid.UUID]*models.Flow, len(flows))
	for i, flow := range flows {
		ids[i] = flow.ID.String()
		byID[flow.ID] = flow
	}

	memberRows, err := r.db.QueryOrdered(ctx, TableFlowCollections,
		Where().In("collection_id", ids...), "position", false, 0, 0)
	if err != nil {
		return translateStoreError(err)
	}
	for _, row := range memberRows {
		collectionID, err := decodeUUID(row["collection_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		memberID, err := decodeUUID(row["flow_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		if flow, ok := byID[collectionID]; ok && flow.Format == models.FormatMulti {
			flow.FlowCollection = append(flow.FlowCollection, memberID)
		}
	}

	reverseRows, err := r.db.Query(ctx, TableFlowCollections, Where().In("flow_id", ids...), 0)
	if err != nil {
		return translateStoreError(err)
	}
	for _, row := range reverseRows {
		memberID, err := decodeUUID(row["flow_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		collectionID, err := decodeUUID(row["collection_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		if flow, ok := byID[memberID]; ok {
			flow.CollectedBy = append(flow.CollectedBy, collectionID)
		}
	}
	return nil
}

func flowToRow(flow *models.Flow) (Row, error) {
	tags, err := encodeTags(flow.Tags)
	if err != nil {
		return nil, err
	}
	segmentDuration, err := encodeJSON(flow.SegmentDuration)
	if err != nil {
		return nil, err
	}

	return Row{
		"id":               flow.ID.String(),
		"source_id":        flow.SourceID.String(),
		"format":           flow.Format,
		"codec":            flow.Codec,
		"label":            nullableString(flow.Label),
		"description":      nullableString(flow.Description),
		"tags":             tags,
		"read_only":        flow.ReadOnly,
		"metadata_version": flow.MetadataVersion,
		"generation":       flow.Generation,
		"segment_duration": segmentDuration,
		"container":        nullableString(flow.Container),
		"max_bit_rate":     nullable(flow.MaxBitRate),
		"avg_bit_rate":     nullable(flow.AvgBitRate),
		"frame_width":      nullable(flow.FrameWidth),
		"frame_height":     nullable(flow.FrameHeight),
		"frame_rate":       nullableString(flow.FrameRate),
		"interlace_mode":   nullableString(flow.InterlaceMode),
		"colorspace":       nullableString(flow.Colorspace),
		"sample_rate":      nullable(flow.SampleRate),
		"bits_per_sample":  nullable(flow.BitsPerSample),
		"channels":         nullable(flow.Channels),
		"created":          encodeTime(flow.Created),
		"metadata_updated": encodeTime(flow.MetadataUpdated),
		"segments_updated": encodeTime(flow.SegmentsUpdated),
		"created_by":       nullableString(flow.CreatedBy),
		"updated_by":       nullableString(flow.UpdatedBy),
	}, nil
}

// flowFromRow reconstructs a flow, dispatching on the stored format so
// only the matching variant's essence fields survive.
func flowFromRow(row Row) (*models.Flow, error) {
	id, err := decodeUUID(row["id"])
	if err != nil {
		return nil, err
	}
	sourceID, err := decodeUUID(row["source_id"])
	if err != nil {
		return nil, err
	}
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, err
	}
	metadataUpdated, err := decodeTime(row["metadata_updated"])
	if err != nil {
		return nil, err
	}
	segmentsUpdated, err := decodeTime(row["segments_updated"])
	if err != nil {
		return nil, err
	}
	tags, err := decodeTags(row["tags"])
	if err != nil {
		return nil, err
	}

	flow := &models.Flow{
		ID:              id,
		SourceID:        sourceID,
		Format:          decodeString(row["format"]),
		Codec:           decodeString(row["codec"]),
		Label:           decodeStringPtr(row["label"]),
		Description:     decodeStringPtr(row["description"]),
		Tags:            tags,
		ReadOnly:        decodeBool(row["read_only"]),
		MetadataVersion: decodeString(row["metadata_version"]),
		Generation:      int(decodeInt64(row["generation"])),
		Container:       decodeStringPtr(row["container"]),
		MaxBitRate:      decodeInt64Ptr(row["max_bit_rate"]),
		AvgBitRate:      decodeInt64Ptr(row["avg_bit_rate"]),
		Created:         created,
		MetadataUpdated: metadataUpdated,
		SegmentsUpdated: segmentsUpdated,
		CreatedBy:       decodeStringPtr(row["created_by"]),
		UpdatedBy:       decodeStringPtr(row["updated_by"]),
	}

	if err := decodeJSON(row["segment_duration"], &flow.SegmentDuration); err != nil {
		return nil, err
	}

	variant, err := flow.Variant()
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", id, err)
	}
	switch variant {
	case models.FlowVideo, models.FlowImage:
		flow.FrameWidth = decodeInt64Ptr(row["frame_width"])
		flow.FrameHeight = decodeInt64Ptr(row["frame_height"])
		flow.FrameRate = decodeStringPtr(row["frame_rate"])
		flow.InterlaceMode = decodeStringPtr(row["interlace_mode"])
		flow.Colorspace = decodeStringPtr(row["colorspace"])
	case models.FlowAudio:
		flow.SampleRate = decodeInt64Ptr(row["sample_rate"])
		flow.BitsPerSample = decodeInt64Ptr(row["bits_per_sample"])
		flow.Channels = decodeInt64Ptr(row["channels"])
	case models.FlowData, models.FlowMulti:
		// No essence columns; multi members attach from the join table.
	}

	return flow, nil
}
