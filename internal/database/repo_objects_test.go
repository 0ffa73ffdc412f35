// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tamstore/internal/models"
)

func TestObjectCreate_AndGet(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	obj := &models.Object{ID: "obj-1", Size: 1024, Created: time.Now().UTC()}
	checkNoError(t, r.objects.Create(ctx, obj))

	got, err := r.objects.Get(ctx, "obj-1")
	checkNoError(t, err)
	checkIntEqual(t, "size", got.Size, 1024)
	checkSliceEmpty(t, "referenced_by_flows", len(got.ReferencedByFlows))
}

func TestObjectCreate_DuplicateConflicts(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	obj := &models.Object{ID: "obj-1", Size: 1, Created: time.Now().UTC()}
	checkNoError(t, r.objects.Create(ctx, obj))
	checkErrorCode(t, r.objects.Create(ctx, obj), models.CodeConflict)
}

func TestObjectEnsure_Idempotent(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	created, err := r.objects.Ensure(ctx, "obj-1", 10)
	checkNoError(t, err)
	checkTrue(t, "first ensure creates", created)

	created, err = r.objects.Ensure(ctx, "obj-1", 999)
	checkNoError(t, err)
	checkFalse(t, "second ensure creates", created)

	// The original size wins; objects are immutable once created.
	got, err := r.objects.Get(ctx, "obj-1")
	checkNoError(t, err)
	checkIntEqual(t, "size", got.Size, 10)
}

func TestObjectGet_ReferencesMaterialized(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flowA := seedFlow(t, r)
	flowB := seedFlow(t, r)

	_, err := r.objects.Ensure(ctx, "obj-1", 5)
	checkNoError(t, err)
	checkNoError(t, r.objects.AddReference(ctx, "obj-1", flowA.ID))
	checkNoError(t, r.objects.AddReference(ctx, "obj-1", flowB.ID))

	got, err := r.objects.Get(ctx, "obj-1")
	checkNoError(t, err)
	checkLenEqual(t, "referenced_by_flows", len(got.ReferencedByFlows), 2)
	if got.FirstReferencedByFlow == nil {
		t.Fatal("first_referenced_by_flow missing")
	}
	checkStringEqual(t, "first referencer", got.FirstReferencedByFlow.String(), flowA.ID.String())
}

func TestObjectAddReference_Idempotent(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	_, err := r.objects.Ensure(ctx, "obj-1", 5)
	checkNoError(t, err)

	checkNoError(t, r.objects.AddReference(ctx, "obj-1", flow.ID))
	checkNoError(t, r.objects.AddReference(ctx, "obj-1", flow.ID))

	refs, err := r.objects.References(ctx, "obj-1")
	checkNoError(t, err)
	checkLenEqual(t, "references", len(refs), 1)
}

func TestObjectExistingIDs_Chunked(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	var wanted []string
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("obj-%03d", i)
		if i%3 == 0 {
			_, err := r.objects.Ensure(ctx, id, 1)
			checkNoError(t, err)
		}
		wanted = append(wanted, id)
	}

	existing, err := r.objects.ExistingIDs(ctx, wanted)
	checkNoError(t, err)
	checkLenEqual(t, "existing", len(existing), 10)
}

func TestObjectList_ByFlow(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flowA := seedFlow(t, r)
	flowB := seedFlow(t, r)
	seedSegments(t, r, flowA.ID, 0, 3)
	seedSegments(t, r, flowB.ID, 0, 2)

	objects, err := r.objects.List(ctx, models.ObjectFilters{FlowID: &flowA.ID}, 0, 0)
	checkNoError(t, err)
	checkLenEqual(t, "objects of flowA", len(objects), 3)

	all, err := r.objects.List(ctx, models.ObjectFilters{}, 0, 0)
	checkNoError(t, err)
	checkLenEqual(t, "all objects", len(all), 5)
}

func TestObjectUpdateSize(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	_, err := r.objects.Ensure(ctx, "obj-1", 0)
	checkNoError(t, err)
	checkNoError(t, r.objects.UpdateSize(ctx, "obj-1", 2048))

	got, err := r.objects.Get(ctx, "obj-1")
	checkNoError(t, err)
	checkIntEqual(t, "size", got.Size, 2048)
}

func TestObjectDelete_BlockedWhileReferenced(t *testing.T) {
	r := setupTestRepos(t)
	ctx := context.Background()

	flow := seedFlow(t, r)
	segments := seedSegments(t, r, flow.ID, 0, 1)
	objectID := segments[0].ObjectID

	checkErrorCode(t, r.objects.Delete(ctx, objectID), models.CodeConflict)

	// Freeing the reference unblocks the delete.
	_, _, err := r.segments.Delete(ctx, flow.ID, "")
	checkNoError(t, err)
	checkNoError(t, r.objects.Delete(ctx, objectID))

	exists, err := r.objects.Exists(ctx, objectID)
	checkNoError(t, err)
	checkFalse(t, "object exists after delete", exists)
}

func TestObjectDelete_Missing(t *testing.T) {
	r := setupTestRepos(t)

	err := r.objects.Delete(context.Background(), uuid.NewString())
	checkErrorCode(t, err, models.CodeNotFound)
}
