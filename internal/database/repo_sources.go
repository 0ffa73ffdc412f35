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
)

// SourceRepo persists Source records and their collection memberships.
type SourceRepo struct {
	db        *DB
	integrity *Integrity
}

// NewSourceRepo constructs a source repository.
func NewSourceRepo(db *DB, integrity *Integrity) *SourceRepo {
	return &SourceRepo{db: db, integrity: integrity}
}

// Create inserts a new source. A duplicate ID is a Conflict.
func (r *SourceRepo) Create(ctx context.Context, src *models.Source) error {
	now := time.Now().UTC()
	if src.Created.IsZero() {
		src.Created = now
	}
	src.MetadataUpdated = now

	row, err := sourceToRow(src)
	if err != nil {
		return models.NewInternal(err)
	}
	if err := r.db.InsertRecord(ctx, TableSources, row); err != nil {
		if isConstraintViolation(err) {
			return models.NewConflict(fmt.Sprintf("source %s already exists", src.ID))
		}
		return translateStoreError(err)
	}
	return nil
}

// Get fetches one source with its collection memberships materialized.
func (r *SourceRepo) Get(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	rows, err := r.db.Query(ctx, TableSources, Where().Eq("id", id.String()), 1)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if len(rows) == 0 {
		return nil, models.NewNotFound("source", id.String())
	}

	src, err := sourceFromRow(rows[0])
	if err != nil {
		return nil, models.NewInternal(err)
	}
	if err := r.attachCollections(ctx, []*models.Source{src}); err != nil {
		return nil, err
	}
	return src, nil
}

// Exists reports whether a source row is present.
func (r *SourceRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.db.Count(ctx, TableSources, Where().Eq("id", id.String()))
	if err != nil {
		return false, translateStoreError(err)
	}
	return n > 0, nil
}

// List returns sources matching the filters, ordered by creation time.
func (r *SourceRepo) List(ctx context.Context, filters models.SourceFilters, limit, offset int) ([]models.Source, error) {
	pred := Where()
	if filters.Format != "" {
		pred.Eq("format", filters.Format)
	}
	if filters.Label != "" {
		pred.Eq("label", filters.Label)
	}

	rows, err := r.db.QueryOrdered(ctx, TableSources, pred, "created", false, limit, offset)
	if err != nil {
		return nil, translateStoreError(err)
	}

	sources := make([]models.Source, 0, len(rows))
	refs := make([]*models.Source, 0, len(rows))
	for _, row := range rows {
		src, err := sourceFromRow(row)
		if err != nil {
			return nil, models.NewInternal(err)
		}
		sources = append(sources, *src)
		refs = append(refs, &sources[len(sources)-1])
	}
	if err := r.attachCollections(ctx, refs); err != nil {
		return nil, err
	}
	return sources, nil
}

// Update replaces the stored record and bumps metadata_updated. Collection
// membership is managed separately through SyncCollections.
func (r *SourceRepo) Update(ctx context.Context, src *models.Source) error {
	src.MetadataUpdated = time.Now().UTC()

	row, err := sourceToRow(src)
	if err != nil {
		return models.NewInternal(err)
	}
	delete(row, "id")
	delete(row, "created")
	delete(row, "created_by")

	count, err := r.db.Update(ctx, TableSources, row, Where().Eq("id", src.ID.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("source", src.ID.String())
	}
	return nil
}

// Delete removes a source under the cascade policy.
func (r *SourceRepo) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	return r.integrity.DeleteSource(ctx, id, cascade)
}

// UpdateLabel sets or clears the label. A nil label stores NULL.
func (r *SourceRepo) UpdateLabel(ctx context.Context, id uuid.UUID, label, updatedBy *string) error {
	return r.patch(ctx, id, Row{"label": nullableString(label), "updated_by": nullableString(updatedBy)})
}

// UpdateDescription sets or clears the description.
func (r *SourceRepo) UpdateDescription(ctx context.Context, id uuid.UUID, description, updatedBy *string) error {
	return r.patch(ctx, id, Row{"description": nullableString(description), "updated_by": nullableString(updatedBy)})
}

// UpdateTags replaces the whole tag map.
func (r *SourceRepo) UpdateTags(ctx context.Context, id uuid.UUID, tags models.Tags, updatedBy *string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return models.NewInternal(err)
	}
	return r.patch(ctx, id, Row{"tags": encoded, "updated_by": nullableString(updatedBy)})
}

// SetTag sets a single tag by name.
func (r *SourceRepo) SetTag(ctx context.Context, id uuid.UUID, name, value string, updatedBy *string) error {
	src, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.Tags == nil {
		src.Tags = models.Tags{}
	}
	src.Tags[name] = value
	return r.UpdateTags(ctx, id, src.Tags, updatedBy)
}

// DeleteTag removes a single tag by name. Unknown names are NotFound so the
// DELETE endpoint distinguishes them from bare success.
func (r *SourceRepo) DeleteTag(ctx context.Context, id uuid.UUID, name string, updatedBy *string) error {
	src, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := src.Tags[name]; !ok {
		return models.NewNotFound("tag", name)
	}
	delete(src.Tags, name)
	return r.UpdateTags(ctx, id, src.Tags, updatedBy)
}

// Collections returns the memberships of a source in collection order.
func (r *SourceRepo) Collections(ctx context.Context, id uuid.UUID) ([]models.CollectionItem, error) {
	if ok, err := r.Exists(ctx, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, models.NewNotFound("source", id.String())
	}
	return r.memberships(ctx, id)
}

// SyncCollections diff-syncs a source's collection memberships: rows absent
// from items are removed, new ones inserted, labels refreshed in place.
func (r *SourceRepo) SyncCollections(ctx context.Context, id uuid.UUID, items []models.CollectionItem, createdBy *string) error {
	if ok, err := r.Exists(ctx, id); err != nil {
		return err
	} else if !ok {
		return models.NewNotFound("source", id.String())
	}

	existing, err := r.memberships(ctx, id)
	if err != nil {
		return err
	}
	current := make(map[uuid.UUID]string, len(existing))
	for _, item := range existing {
		current[item.CollectionID] = item.Label
	}

	now := encodeTime(time.Now().UTC())
	wanted := make(map[uuid.UUID]bool, len(items))
	for pos, item := range items {
		wanted[item.CollectionID] = true

		if _, known := current[item.CollectionID]; !known {
			err = r.db.InsertRecord(ctx, TableSourceCollections, Row{
				"collection_id": item.CollectionID.String(),
				"source_id":     id.String(),
				"label":         item.Label,
				"position":      pos,
				"created":       now,
				"created_by":    nullableString(createdBy),
			})
		} else {
			_, err = r.db.Update(ctx, TableSourceCollections,
				Row{"label": item.Label, "position": pos},
				Where().Eq("collection_id", item.CollectionID.String()).Eq("source_id", id.String()))
		}
		if err != nil {
			return translateStoreError(err)
		}
	}

	for collectionID := range current {
		if wanted[collectionID] {
			continue
		}
		_, err := r.db.Delete(ctx, TableSourceCollections,
			Where().Eq("collection_id", collectionID.String()).Eq("source_id", id.String()))
		if err != nil {
			return translateStoreError(err)
		}
	}

	return r.touch(ctx, id)
}

// patch applies a partial update and bumps metadata_updated.
func (r *SourceRepo) patch(ctx context.Context, id uuid.UUID, updates Row) error {
	updates["metadata_updated"] = encodeTime(time.Now().UTC())
	count, err := r.db.Update(ctx, TableSources, updates, Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	if count == 0 {
		return models.NewNotFound("source", id.String())
	}
	return nil
}

func (r *SourceRepo) touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Update(ctx, TableSources,
		Row{"metadata_updated": encodeTime(time.Now().UTC())},
		Where().Eq("id", id.String()))
	if err != nil {
		return translateStoreError(err)
	}
	return nil
}

// memberships loads the join rows where this source is the member.
func (r *SourceRepo) memberships(ctx context.Context, id uuid.UUID) ([]models.CollectionItem, error) {
	rows, err := r.db.QueryOrdered(ctx, TableSourceCollections,
		Where().Eq("source_id", id.String()), "position", false, 0, 0)
	if err != nil {
		return nil, translateStoreError(err)
	}

	items := make([]models.CollectionItem, 0, len(rows))
	for _, row := range rows {
		collectionID, err := decodeUUID(row["collection_id"])
		if err != nil {
			return nil, models.NewInternal(err)
		}
		items = append(items, models.CollectionItem{
			CollectionID: collectionID,
			Label:        decodeString(row["label"]),
		})
	}
	return items, nil
}

// attachCollections materializes SourceCollection and CollectedBy for a
// batch of sources with one join-table query.
func (r *SourceRepo) attachCollections(ctx context.Context, sources []*models.Source) error {
	if len(sources) == 0 {
		return nil
	}

	ids := make([]interface{}, len(sources))
	byID := make(map[uuid.UUID]*models.Source, len(sources))
	for i, src := range sources {
		ids[i] = src.ID.String()
		byID[src.ID] = src
	}

	rows, err := r.db.QueryOrdered(ctx, TableSourceCollections,
		Where().In("source_id", ids...), "position", false, 0, 0)
	if err != nil {
		return translateStoreError(err)
	}

	for _, row := range rows {
		sourceID, err := decodeUUID(row["source_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		collectionID, err := decodeUUID(row["collection_id"])
		if err != nil {
			return models.NewInternal(err)
		}
		src, ok := byID[sourceID]
		if !ok {
			continue
		}
		src.SourceCollection = append(src.SourceCollection, models.CollectionItem{
			CollectionID: collectionID,
			Label:        decodeString(row["label"]),
		})
		src.CollectedBy = append(src.CollectedBy, collectionID)
	}
	return nil
}

func sourceToRow(src *models.Source) (Row, error) {
	tags, err := encodeTags(src.Tags)
	if err != nil {
		return nil, err
	}
	return Row{
		"id":               src.ID.String(),
		"format":           src.Format,
		"label":            nullableString(src.Label),
		"description":      nullableString(src.Description),
		"tags":             tags,
		"created":          encodeTime(src.Created),
		"metadata_updated": encodeTime(src.MetadataUpdated),
		"created_by":       nullableString(src.CreatedBy),
		"updated_by":       nullableString(src.UpdatedBy),
	}, nil
}

func sourceFromRow(row Row) (*models.Source, error) {
	id, err := decodeUUID(row["id"])
	if err != nil {
		return nil, err
	}
	created, err := decodeTime(row["created"])
	if err != nil {
		return nil, err
	}
	updated, err := decodeTime(row["metadata_updated"])
	if err != nil {
		return nil, err
	}
	tags, err := decodeTags(row["tags"])
	if err != nil {
		return nil, err
	}

	return &models.Source{
		ID:              id,
		Format:          decodeString(row["format"]),
		Label:           decodeStringPtr(row["label"]),
		Description:     decodeStringPtr(row["description"]),
		Tags:            tags,
		Created:         created,
		MetadataUpdated: updated,
		CreatedBy:       decodeStringPtr(row["created_by"]),
		UpdatedBy:       decodeStringPtr(row["updated_by"]),
	}, nil
}
