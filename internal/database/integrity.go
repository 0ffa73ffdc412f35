// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
	"github.com/tomtom215/tamstore/internal/timerange"
)

// maxListedDependents caps how many dependent IDs a refused delete names
// in its error message. The count in the message is always the full count.
const maxListedDependents = 10

// Integrity owns the cascade and block rules of the entity graph.
//
// The rules, in one place: a source with flows refuses a plain delete and
// cascades through its flows when asked; a flow never deletes while
// read_only, refuses a plain delete while segments exist, and cascades
// through its segments when asked; deleting segments drops the
// flow_object_references rows that no surviving segment justifies; object
// rows only delete once no flow references them, and bytes in the object
// store are never touched by any of it.
type Integrity struct {
	db *DB
}

// NewIntegrity creates the integrity engine over the metadata adapter.
func NewIntegrity(db *DB) *Integrity {
	return &Integrity{db: db}
}

// DeleteSource removes a source. With cascade=false the delete is refused
// while dependent flows exist, naming the first few. With cascade=true
// each dependent flow is deleted with cascade in turn, so a read-only
// dependent flow aborts the whole cascade with Forbidden.
func (g *Integrity) DeleteSource(ctx context.Context, id uuid.UUID, cascade bool) error {
	exists, err := g.db.Count(ctx, TableSources, Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if exists == 0 {
		return models.NewNotFound("source", id.String())
	}

	flowRows, err := g.db.QueryOrdered(ctx, TableFlows,
		Where().Eq("source_id", id.String()), "created", false, 0, 0)
	if err != nil {
		return translateStoreError(err)
	}

	if len(flowRows) > 0 && !cascade {
		return models.NewConflict(fmt.Sprintf(
			"source %s has %d dependent flow(s): %s", id, len(flowRows), listIDs(flowRows)))
	}

	for _, row := range flowRows {
		flowID, err := decodeUUID(row["id"])
		if err != nil {
			return models.NewInternal(err)
		}
		if err := g.DeleteFlow(ctx, flowID, true); err != nil {
			return err
		}
	}

	if _, err := g.db.Delete(ctx, TableSourceCollections,
		Where().Eq("source_id", id.String())); err != nil {
		return translateStoreError(err)
	}

	count, err := g.db.Delete(ctx, TableSources, Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("source", id.String())
	}
	return nil
}

// DeleteFlow removes a flow. Read-only flows refuse deletion outright.
// With cascade=false the delete is refused while segments exist; with
// cascade=true the flow's segments go first, taking their orphaned
// reference rows with them. Object rows and stored bytes stay.
func (g *Integrity) DeleteFlow(ctx context.Context, id uuid.UUID, cascade bool) error {
	flowRows, err := g.db.Query(ctx, TableFlows, Where().Eq("id", id.String()), 1)
	if err != nil {
		return translateStoreError(err)
	}
	if len(flowRows) == 0 {
		return models.NewNotFound("flow", id.String())
	}
	if decodeBool(flowRows[0]["read_only"]) {
		return models.NewForbidden(fmt.Sprintf("flow %s is read-only", id))
	}

	segCount, err := g.db.Count(ctx, TableSegments, Where().Eq("flow_id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if segCount > 0 {
		if !cascade {
			return models.NewConflict(fmt.Sprintf(
				"flow %s has %d segment(s); delete them first or request a cascade", id, segCount))
		}
		if _, _, err := g.DeleteSegments(ctx, id, ""); err != nil {
			return err
		}
	}

	// Membership rows on both edges: rows where this flow is a member and
	// rows where it is the collection.
	if _, err := g.db.Delete(ctx, TableFlowCollections,
		Where().Eq("flow_id", id.String())); err != nil {
		return translateStoreError(err)
	}
	if _, err := g.db.Delete(ctx, TableFlowCollections,
		Where().Eq("collection_id", id.String())); err != nil {
		return translateStoreError(err)
	}

	count, err := g.db.Delete(ctx, TableFlows, Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("flow", id.String())
	}
	return nil
}

// DeleteSegments removes a flow's segments overlapping rangeFilter, or all
// of them when the filter is empty. Reference rows are dropped only for
// objects left with no surviving segment on this flow; object rows and
// their bytes always stay. Returns the number of segments removed and the
// distinct object IDs whose rows were kept.
//
// A missing flow yields zero deletions rather than an error; existence
// checks live with callers so the async drainer stays idempotent.
func (g *Integrity) DeleteSegments(ctx context.Context, flowID uuid.UUID, rangeFilter string) (int64, []string, error) {
	rows, err := g.db.Query(ctx, TableSegments, Where().Eq("flow_id", flowID.String()), 0)
	if err != nil {
		return 0, nil, translateStoreError(err)
	}

	var filter timerange.Range
	filtered := rangeFilter != ""
	if filtered {
		filter, err = timerange.Parse(rangeFilter)
		if err != nil {
			return 0, nil, models.NewValidation("timerange", err.Error())
		}
	}

	// Overlap depends only on the timerange text, so doomed rows are
	// selected (and later deleted) by their distinct timerange strings.
	doomedRanges := make(map[string]struct{})
	affected := make(map[string]struct{})
	var doomed int64
	for _, row := range rows {
		tr := decodeString(row["timerange"])
		if filtered {
			segRange, err := timerange.Parse(tr)
			if err != nil || !segRange.Overlaps(filter) {
				continue
			}
		}
		doomedRanges[tr] = struct{}{}
		affected[decodeString(row["object_id"])] = struct{}{}
		doomed++
	}
	if doomed == 0 {
		return 0, nil, nil
	}

	if !filtered {
		if _, err := g.db.Delete(ctx, TableSegments,
			Where().Eq("flow_id", flowID.String())); err != nil {
			return 0, nil, translateStoreError(err)
		}
	} else {
		ranges := make([]interface{}, 0, len(doomedRanges))
		for tr := range doomedRanges {
			ranges = append(ranges, tr)
		}
		for _, part := range chunk(ranges, 500) {
			if _, err := g.db.Delete(ctx, TableSegments,
				Where().Eq("flow_id", flowID.String()).In("timerange", part...)); err != nil {
				return 0, nil, translateStoreError(err)
			}
		}
	}

	kept := make([]string, 0, len(affected))
	for objectID := range affected {
		kept = append(kept, objectID)
	}
	sort.Strings(kept)

	if err := g.dropOrphanedReferences(ctx, flowID, kept); err != nil {
		return 0, nil, err
	}
	g.touchSegmentsUpdated(ctx, flowID)
	return doomed, kept, nil
}

// DeleteSegmentsBatch removes at most limit of a flow's segments
// overlapping rangeFilter, earliest range first, so the async drainer can
// pace a large deletion in slices. Returns the rows removed; zero means
// the drain is finished.
func (g *Integrity) DeleteSegmentsBatch(ctx context.Context, flowID uuid.UUID, rangeFilter string, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}

	var filter timerange.Range
	filtered := rangeFilter != ""
	if filtered {
		var err error
		filter, err = timerange.Parse(rangeFilter)
		if err != nil {
			return 0, models.NewValidation("timerange", err.Error())
		}
	}

	rows, err := g.db.Query(ctx, TableSegments, Where().Eq("flow_id", flowID.String()), 0)
	if err != nil {
		return 0, translateStoreError(err)
	}

	type doomedRow struct {
		objectID  string
		timerange string
		start     timerange.Timestamp
	}
	candidates := make([]doomedRow, 0, len(rows))
	for _, row := range rows {
		tr := decodeString(row["timerange"])
		segRange, err := timerange.Parse(tr)
		if err != nil {
			continue
		}
		if filtered && !segRange.Overlaps(filter) {
			continue
		}
		candidates = append(candidates, doomedRow{
			objectID:  decodeString(row["object_id"]),
			timerange: tr,
			start:     segRange.Lo,
		})
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if c := candidates[i].start.Compare(candidates[j].start); c != 0 {
			return c < 0
		}
		return candidates[i].timerange < candidates[j].timerange
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	affected := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	var deleted int64
	for _, c := range candidates {
		count, err := g.db.Delete(ctx, TableSegments, Where().
			Eq("flow_id", flowID.String()).
			Eq("object_id", c.objectID).
			Eq("timerange", c.timerange))
		if err != nil {
			return deleted, translateStoreError(err)
		}
		deleted += count
		if _, ok := seen[c.objectID]; !ok {
			seen[c.objectID] = struct{}{}
			affected = append(affected, c.objectID)
		}
	}

	if err := g.dropOrphanedReferences(ctx, flowID, affected); err != nil {
		return deleted, err
	}
	g.touchSegmentsUpdated(ctx, flowID)
	return deleted, nil
}

// DeleteObject removes an object row once nothing references it. The
// stored bytes are left for an out-of-band sweep.
func (g *Integrity) DeleteObject(ctx context.Context, id string) error {
	refs, err := g.db.Count(ctx, TableFlowObjectReferences, Where().Eq("object_id", id))
	if err != nil {
		return translateStoreError(err)
	}
	if refs > 0 {
		return models.NewConflict(fmt.Sprintf(
			"object %s is referenced by %d flow(s)", id, refs))
	}

	count, err := g.db.Delete(ctx, TableObjects, Where().Eq("id", id))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("object", id)
	}
	return nil
}

// touchSegmentsUpdated bumps the flow's segments_updated stamp. A flow
// mid-cascade may already be gone; the zero-row update is harmless.
func (g *Integrity) touchSegmentsUpdated(ctx context.Context, flowID uuid.UUID) {
	_, _ = g.db.Update(ctx, TableFlows,
		Row{"segments_updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", flowID.String()))
}

// dropOrphanedReferences removes the (object, flow) reference rows for
// objects with no surviving segment on the flow.
func (g *Integrity) dropOrphanedReferences(ctx context.Context, flowID uuid.UUID, objectIDs []string) error {
	if len(objectIDs) == 0 {
		return nil
	}

	survivors := make(map[string]struct{})
	for _, part := range chunk(toAnySlice(objectIDs), 500) {
		rows, err := g.db.Query(ctx, TableSegments,
			Where().Eq("flow_id", flowID.String()).In("object_id", part...), 0)
		if err != nil {
			return translateStoreError(err)
		}
		for _, row := range rows {
			survivors[decodeString(row["object_id"])] = struct{}{}
		}
	}

	var orphaned []interface{}
	for _, objectID := range objectIDs {
		if _, ok := survivors[objectID]; !ok {
			orphaned = append(orphaned, objectID)
		}
	}
	for _, part := range chunk(orphaned, 500) {
		if _, err := g.db.Delete(ctx, TableFlowObjectReferences,
			Where().Eq("flow_id", flowID.String()).In("object_id", part...)); err != nil {
			return translateStoreError(err)
		}
	}
	return nil
}

// listIDs renders the first few "id" values of rows for error messages.
func listIDs(rows []Row) string {
	ids := make([]string, 0, maxListedDependents)
	for _, row := range rows {
		if len(ids) == maxListedDependents {
			ids = append(ids, "...")
			break
		}
		ids = append(ids, decodeString(row["id"]))
	}
	return strings.Join(ids, ", ")
}

// translateStoreError maps adapter failures onto the service taxonomy.
// Connection loss reads as the store being unavailable; anything else is
// a storage fault. Errors already carrying taxonomy codes pass through.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	var svc *models.ServiceError
	if errors.As(err, &svc) {
		return err
	}
	if isConnectionError(err) {
		return models.NewStorageUnavailable(err)
	}
	return models.NewStorageError(err)
}
