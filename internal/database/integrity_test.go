// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestIntegrityDeleteSource_ConflictNamesDependents(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	src := testSource(models.FormatVideo)
	checkNoError(t, r.sources.Create(ctx, src))
	flow := testVideoFlow(src.ID)
	checkNoError(t, r.flows.Create(ctx, flow))

	err := r.sources.Delete(ctx, src.ID, false)
	checkErrorCode(t, err, models.CodeConflict)
	if !strings.Contains(err.Error(), flow.ID.String()) {
		t.Errorf("conflict should name the dependent flow, got: %v", err)
	}
}

func TestIntegrityDeleteSource_CascadeAbortsOnReadOnlyFlow(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	src := testSource(models.FormatVideo)
	checkNoError(t, r.sources.Create(ctx, src))
	flow := testVideoFlow(src.ID)
	checkNoError(t, r.flows.Create(ctx, flow))
	checkNoError(t, r.flows.SetReadOnly(ctx, flow.ID, true))

	err := r.sources.Delete(ctx, src.ID, true)
	checkErrorCode(t, err, models.CodeForbidden)

	// Nothing was deleted.
	exists, err := r.sources.Exists(ctx, src.ID)
	checkNoError(t, err)
	checkTrue(t, "source survives aborted cascade", exists)
	exists, err = r.flows.Exists(ctx, flow.ID)
	checkNoError(t, err)
	checkTrue(t, "flow survives aborted cascade", exists)
}

func TestIntegrityDeleteSource_CascadeWalksSegments(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	src := testSource(models.FormatVideo)
	checkNoError(t, r.sources.Create(ctx, src))
	flow := testVideoFlow(src.ID)
	checkNoError(t, r.flows.Create(ctx, flow))
	segments := seedSegments(t, r, flow.ID, 0, 3)

	checkNoError(t, r.sources.Delete(ctx, src.ID, true))

	remaining, err := r.db.Count(ctx, TableSegments, Where().Eq("flow_id", flow.ID.String()))
	checkNoError(t, err)
	checkIntEqual(t, "segments after cascade", remaining, 0)

	// Objects stay behind for the out-of-band sweep.
	for _, seg := range segments {
		exists, err := r.objects.Exists(ctx, seg.ObjectID)
		checkNoError(t, err)
		checkTrue(t, "object survives cascade", exists)
	}
}

func TestIntegrityDeleteSource_CleansCollectionRows(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	src := testSource(models.FormatVideo)
	checkNoError(t, r.sources.Create(ctx, src))
	checkNoError(t, r.sources.SyncCollections(ctx, src.ID, []models.CollectionItem{
		{CollectionID: uuid.New(), Label: "bundle"},
	}, nil))

	checkNoError(t, r.sources.Delete(ctx, src.ID, true))

	rows, err := r.db.Count(ctx, TableSourceCollections, Where().Eq("source_id", src.ID.String()))
	checkNoError(t, err)
	checkIntEqual(t, "membership rows", rows, 0)
}

func TestIntegrityDeleteFlow_CleansBothCollectionEdges(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	src := testSource(models.FormatMulti)
	checkNoError(t, r.sources.Create(ctx, src))
	multi := testMultiFlow(src.ID)
	checkNoError(t, r.flows.Create(ctx, multi))
	member := seedFlow(t, r)
	checkNoError(t, r.flows.SyncFlowCollection(ctx, multi.ID, []uuid.UUID{member.ID}, nil))

	// Deleting the member must remove its membership row under the multi.
	checkNoError(t, r.flows.Delete(ctx, member.ID, false))

	rows, err := r.db.Count(ctx, TableFlowCollections, Where().Eq("flow_id", member.ID.String()))
	checkNoError(t, err)
	checkIntEqual(t, "member edge rows", rows, 0)

	// Deleting the multi removes rows where it is the collection.
	checkNoError(t, r.flows.Delete(ctx, multi.ID, false))
	rows, err = r.db.Count(ctx, TableFlowCollections, Where().Eq("collection_id", multi.ID.String()))
	checkNoError(t, err)
	checkIntEqual(t, "collection edge rows", rows, 0)
}

func TestIntegrityDeleteSegments_MissingFlowIsZero(t *testing.T) {
	r := setupTestRepos(t)

	deleted, kept, err := r.segments.Delete(context.Background(), uuid.New(), "")
	checkNoError(t, err)
	checkIntEqual(t, "deleted", deleted, 0)
	checkSliceEmpty(t, "kept", len(kept))
}

func TestIntegrityDeleteSegments_KeptObjectsSorted(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	seedSegments(t, r, flow.ID, 0, 4)

	_, kept, err := r.segments.Delete(ctx, flow.ID, "")
	checkNoError(t, err)
	checkLenEqual(t, "kept", len(kept), 4)
	for i := 1; i < len(kept); i++ {
		if kept[i-1] > kept[i] {
			t.Errorf("kept objects not sorted: %q > %q", kept[i-1], kept[i])
		}
	}
}

func TestIntegrityDeleteObject_ConflictCountsReferences(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flowA := seedFlow(t, r)
	flowB := seedFlow(t, r)
	seg := testSegment("[0:0_1:0)")
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowA.ID, seg))
	shared := *seg
	checkNoError(t, r.segments.CreateMetadataOnly(ctx, flowB.ID, &shared))

	err := r.objects.Delete(ctx, seg.ObjectID)
	checkErrorCode(t, err, models.CodeConflict)
	if !strings.Contains(err.Error(), "2 flow") {
		t.Errorf("conflict should count references, got: %v", err)
	}
}

func TestTranslateStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorCode
	}{
		{"connection loss", errors.New("sql: database is closed"), models.CodeStorageUnavailable},
		{"other failure", errors.New("Binder Error: column nope does not exist"), models.CodeStorageError},
		{"wrapped connection loss", fmt.Errorf("query: %w", errors.New("connection refused")), models.CodeStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErrorCode(t, translateStoreError(tt.err), tt.want)
		})
	}

	if translateStoreError(nil) != nil {
		t.Error("nil should pass through")
	}

	// Taxonomy errors pass through untouched.
	original := models.NewNotFound("flow", "x")
	if translateStoreError(original) != original {
		t.Error("service errors should pass through unchanged")
	}
}
