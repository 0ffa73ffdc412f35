// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestSegmentCreate_InlineBytes(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")
	payload := []byte("ten bytes!")

	checkNoError(t, r.segments.Create(ctx, flow.ID, seg, payload, "video/mp2t"))

	// Bytes landed at the storage path.
	info, err := r.store.Head(ctx, seg.StoragePath)
	checkNoError(t, err)
	checkIntEqual(t, "stored size", info.Size, int64(len(payload)))

	// The object row recorded the payload size.
	obj, err := r.objects.Get(ctx, seg.ObjectID)
	checkNoError(t, err)
	checkIntEqual(t, "object size", obj.Size, int64(len(payload)))
	checkLenEqual(t, "referenced_by_flows", len(obj.ReferencedByFlows), 1)
}

func TestSegmentCreateMetadataOnly_SizeFromHead(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")

	// Simulate a presigned upload that already happened.
	checkNoError(t, r.store.Put(ctx, seg.StoragePath, []byte("12345"), "video/mp2t"))
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flow.ID, seg))

	obj, err := r.objects.Get(ctx, seg.ObjectID)
	checkNoError(t, err)
	checkIntEqual(t, "object size", obj.Size, 5)
}

func TestSegmentCreateMetadataOnly_MissingBytesDegradeToZero(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")

	// No upload happened; registration still succeeds with size 0.
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flow.ID, seg))

	obj, err := r.objects.Get(ctx, seg.ObjectID)
	checkNoError(t, err)
	checkIntEqual(t, "object size", obj.Size, 0)
}

func TestSegmentCreate_MissingFlow(t *testing.T) {
	r := setupTestRepos(t)

	seg := testSegment("[0:0_1:0)")
	err := r.segments.CreateMetadataOnly(context.Background(), uuid.New(), seg)
	checkErrorCode(t, err, models.CodeNotFound)
}

func TestSegmentCreate_ReadOnlyFlowForbidden(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	checkNoError(t, r.flows.SetReadOnly(ctx, flow.ID, true))

	seg := testSegment("[0:0_1:0)")
	err := r.segments.CreateMetadataOnly(ctx, flow.ID, seg)
	checkErrorCode(t, err, models.CodeForbidden)
}

func TestSegmentCreate_DuplicateTriple(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flow.ID, seg))

	dup := *seg
	err := r.segments.CreateMetadataOnly(ctx, flow.ID, &dup)
	checkErrorCode(t, err, models.CodeBadRequest)
}

func TestSegmentCreate_InvalidTimeRange(t *testing.T) {
	r := setupTestRepos(t)

	flow := seedFlow(t, r)
	seg := testSegment("not-a-range")
	err := r.segments.CreateMetadataOnly(context.Background(), flow.ID, seg)
	checkErrorCode(t, err, models.CodeValidation)
}

func TestSegmentCreate_SameObjectOnTwoFlows(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flowA := seedFlow(t, r)
	flowB := seedFlow(t, r)

	seg := testSegment("[0:0_1:0)")
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowA.ID, seg))

	shared := *seg
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowB.ID, &shared))

	obj, err := r.objects.Get(ctx, seg.ObjectID)
	checkNoError(t, err)
	checkLenEqual(t, "referenced_by_flows", len(obj.ReferencedByFlows), 2)
	checkStringEqual(t, "first referencer", obj.FirstReferencedByFlow.String(), flowA.ID.String())
}

func TestSegmentGetByFlow_OverlapFilter(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seedSegments(t, r, flow.ID, 0, 5) // [0_1) .. [4_5)

	all, err := r.segments.GetByFlow(ctx, flow.ID, "")
	checkNoError(t, err)
	checkLenEqual(t, "all segments", len(all), 5)

	// [1:0_3:0) overlaps [1_2) and [2_3) only.
	some, err := r.segments.GetByFlow(ctx, flow.ID, "[1:0_3:0)")
	checkNoError(t, err)
	checkLenEqual(t, "overlapping segments", len(some), 2)
	checkStringEqual(t, "first range", some[0].TimeRange, "1:0_2:0")
	checkStringEqual(t, "second range", some[1].TimeRange, "2:0_3:0")
}

func TestSegmentGetByFlow_InvalidFilter(t *testing.T) {
	r := setupTestRepos(t)

	flow := seedFlow(t, r)
	_, err := r.segments.GetByFlow(context.Background(), flow.ID, "backwards_range")
	checkErrorCode(t, err, models.CodeValidation)
}

func TestSegmentGetByObject(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flowA := seedFlow(t, r)
	flowB := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowA.ID, seg))
	shared := *seg
	shared.TimeRange = "[10:0_11:0)"
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowB.ID, &shared))

	segments, err := r.segments.GetByObject(ctx, seg.ObjectID)
	checkNoError(t, err)
	checkLenEqual(t, "segments using object", len(segments), 2)
}

func TestSegmentCountByFlow(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seedSegments(t, r, flow.ID, 0, 4)

	count, err := r.segments.CountByFlow(ctx, flow.ID, "")
	checkNoError(t, err)
	checkIntEqual(t, "count", count, 4)

	count, err = r.segments.CountByFlow(ctx, flow.ID, "[0:0_2:0)")
	checkNoError(t, err)
	checkIntEqual(t, "filtered count", count, 2)
}

func TestSegmentDelete_RangeScoped(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	segments := seedSegments(t, r, flow.ID, 0, 5)

	deleted, kept, err := r.segments.Delete(ctx, flow.ID, "[0:0_2:0)")
	checkNoError(t, err)
	checkIntEqual(t, "deleted", deleted, 2)
	checkLenEqual(t, "kept objects", len(kept), 2)

	remaining, err := r.segments.GetByFlow(ctx, flow.ID, "")
	checkNoError(t, err)
	checkLenEqual(t, "remaining", len(remaining), 3)

	// Object rows for the deleted segments survive, unreferenced.
	for _, seg := range segments[:2] {
		exists, err := r.objects.Exists(ctx, seg.ObjectID)
		checkNoError(t, err)
		checkTrue(t, "object survives segment delete", exists)

		refs, err := r.objects.References(ctx, seg.ObjectID)
		checkNoError(t, err)
		checkSliceEmpty(t, "references", len(refs))
	}
}

func TestSegmentDelete_SharedObjectKeepsReference(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)

	// Two segments on the same flow referencing one object.
	seg1 := testSegment("[0:0_1:0)")
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flow.ID, seg1))
	seg2 := *seg1
	seg2.TimeRange = "[5:0_6:0)"
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flow.ID, &seg2))

	// Deleting the first range leaves the reference in place for the second.
	deleted, _, err := r.segments.Delete(ctx, flow.ID, "[0:0_1:0)")
	checkNoError(t, err)
	checkIntEqual(t, "deleted", deleted, 1)

	refs, err := r.objects.References(ctx, seg1.ObjectID)
	checkNoError(t, err)
	checkLenEqual(t, "references retained", len(refs), 1)

	// Deleting the rest orphans the object.
	deleted, _, err = r.segments.Delete(ctx, flow.ID, "")
	checkNoError(t, err)
	checkIntEqual(t, "deleted rest", deleted, 1)

	refs, err = r.objects.References(ctx, seg1.ObjectID)
	checkNoError(t, err)
	checkSliceEmpty(t, "references after full delete", len(refs))
}

func TestSegmentDelete_EmptyRangeMatchesNothing(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seedSegments(t, r, flow.ID, 0, 2)

	deleted, kept, err := r.segments.Delete(ctx, flow.ID, "[50:0_60:0)")
	checkNoError(t, err)
	checkIntEqual(t, "deleted", deleted, 0)
	checkSliceEmpty(t, "kept", len(kept))
}
