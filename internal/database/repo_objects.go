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

	"github.com/tomtom215/tamstore/internal/models"
)

// ObjectRepo persists Object rows and the flow_object_references join
// table. referenced_by_flows is never stored: it is grouped from the join
// table on every read.
type ObjectRepo struct {
	db        *DB
	integrity *Integrity
}

// NewObjectRepo constructs an object repository.
func NewObjectRepo(db *DB, integrity *Integrity) *ObjectRepo {
	return &ObjectRepo{db: db, integrity: integrity}
}

// Create inserts a new object row. A duplicate ID is a Conflict: object
// bytes are write-once, so a second creation is always a caller bug.
func (r *ObjectRepo) Create(ctx context.Context, obj *models.Object) error {
	if obj.Created.IsZero() {
		obj.Created = time.Now().UTC()
	}

	err := r.db.InsertRecord(ctx, TableObjects, Row{
		"id":      obj.ID,
		"size":    obj.Size,
		"created": encodeTime(obj.Created),
	})
	if err != nil {
		if isConstraintViolation(err) {
			return models.NewConflict(fmt.Sprintf("object %s already exists", obj.ID))
		}
		return translateStoreError(err)
	}
	return nil
}

// Ensure creates the object row if absent and reports whether it did.
// Used by segment registration, where re-registering an existing object
// under a new flow is the normal sharing path.
func (r *ObjectRepo) Ensure(ctx context.Context, id string, size int64) (bool, error) {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = r.Create(ctx, &models.Object{ID: id, Size: size})
	if err != nil {
		// A concurrent registration winning the race is fine.
		if svcErr, ok := models.AsServiceError(err); ok && svcErr.Code == models.CodeConflict {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get fetches one object with referenced_by_flows materialized from the
// join table, earliest reference first.
func (r *ObjectRepo) Get(ctx context.Context, id string) (*models.Object, error) {
	rows, err := r.db.Query(ctx, TableObjects, Where().Eq("id", id), 1)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, models.NewNotFound("object", id)
	}

	obj, err := objectFromRow(rows[0])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	if err := r.attachReferences(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Exists reports whether an object row is present.
func (r *ObjectRepo) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.db.Count(ctx, TableObjects, Where().Eq("id", id))
	if err != nil {
		return false, translateStoreError(err)
	}
	return n > 0, nil
}

// ExistingIDs returns which of the given IDs already have object rows.
// Storage allocation uses this to refuse reuse of a written key.
func (r *ObjectRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existing []string
	for _, part := range chunk(ids, 500) {
		rows, err := r.db.Query(ctx, TableObjects, Where().In("id", toAnySlice(part)...), 0)
		if err != nil {
			return nil, translateStoreError(err)
		}
		for _, row := range rows {
			existing = append(existing, decodeString(row["id"]))
		}
	}
	sort.Strings(existing)
	return existing, nil
}

// List returns objects, optionally narrowed to one referencing flow.
func (r *ObjectRepo) List(ctx context.Context, filters models.ObjectFilters, limit, offset int) ([]models.Object, error) {
	if filters.FlowID != nil {
		return r.listByFlow(ctx, filters, limit, offset)
	}

	rows, err := r.db.QueryOrdered(ctx, TableObjects, nil, "created", false, limit, offset)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return r.decodeWithReferences(ctx, rows)
}

// UpdateSize records the byte size once it is known, such as after a HEAD
// on a presigned-upload object.
func (r *ObjectRepo) UpdateSize(ctx context.Context, id string, size int64) error {
	count, err := r.db.Update(ctx, TableObjects, Row{"size": size}, Where().Eq("id", id))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("object", id)
	}
	return nil
}

// Delete removes an object row, refused while flow references exist.
func (r *ObjectRepo) Delete(ctx context.Context, id string) error {
	return r.integrity.DeleteObject(ctx, id)
}

// AddReference records that a flow references an object. Idempotent: the
// join table's primary key absorbs repeats.
func (r *ObjectRepo) AddReference(ctx context.Context, objectID string, flowID uuid.UUID) error {
	err := r.db.InsertRecord(ctx, TableFlowObjectReferences, Row{
		"object_id": objectID,
		"flow_id":   flowID.String(),
		"created":   encodeTime(time.Now().UTC()),
	})
	if err != nil {
		if isConstraintViolation(err) {
			return nil
		}
		return translateStoreError(err)
	}
	return nil
}

// References returns the join rows for one object, oldest first.
func (r *ObjectRepo) References(ctx context.Context, objectID string) ([]models.FlowObjectReference, error) {
	rows, err := r.db.QueryOrdered(ctx, TableFlowObjectReferences,
		Where().Eq("object_id", objectID), "created", false, 0, 0)
	if err != nil {
		return nil, translateStoreError(err)
	}

	refs := make([]models.FlowObjectReference, 0, len(rows))
	for _, row := range rows {
		flowID, err := decodeUUID(row["flow_id"])
		if err != nil {
			return nil, models.NewInternal(err)
		}
		created, err := decodeTime(row["created"])
		if err != nil {
			return nil, models.NewInternal(err)
		}
		refs = append(refs, models.FlowObjectReference{
			ObjectID: decodeString(row["object_id"]),
			FlowID:   flowID,
			Created:  created,
		})
	}
	return refs, nil
}

func (r *ObjectRepo) listByFlow(ctx context.Context, filters models.ObjectFilters, limit, offset int) ([]models.Object, error) {
	refRows, err := r.db.QueryOrdered(ctx, TableFlowObjectReferences,
		Where().Eq("flow_id", filters.FlowID.String()), "created", false, limit, offset)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(refRows) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, 0, len(refRows))
	for _, row := range refRows {
		ids = append(ids, row["object_id"])
	}

	rows, err := r.db.QueryOrdered(ctx, TableObjects, Where().In("id", ids...), "created", false, 0, 0)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return r.decodeWithReferences(ctx, rows)
}

func (r *ObjectRepo) decodeWithReferences(ctx context.Context, rows []Row) ([]models.Object, error) {
	objects := make([]models.Object, 0, len(rows))
	for _, row := range rows {
		obj, err := objectFromRow(row)
		if err != nil {
			return nil, models.NewInternal(err)
		}
		if err := r.attachReferences(ctx, obj); err != nil {
			return nil, err
		}
		objects = append(objects, *obj)
	}
	return objects, nil
}

func (r *ObjectRepo) attachReferences(ctx context.Context, obj *models.Object) error {
	refs, err := r.References(ctx, obj.ID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		obj.ReferencedByFlows = append(obj.ReferencedByFlows, ref.FlowID)
	}
	if len(refs) > 0 {
		first := refs[0].FlowID
		obj.FirstReferencedByFlow = &first
	}
	return nil
}

func objectFromRow(row Row) (*models.Object, error) {
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, err
	}
	return &models.Object{
		ID:      decodeString(row["id"]),
		Size:    decodeInt64(row["size"]),
		Created: created,
	}, nil
}
