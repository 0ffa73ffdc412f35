// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

/*
schema.go - Metadata Schema Management

This file manages the DuckDB schema: the nine TAMS tables and their indexes.

Tables:
  - sources: logical capture/asset records
  - flows: timed streams, one row per flow with variant columns NULLed out
    for non-matching formats
  - segments: time-anchored flow→object references; logical key is
    (flow_id, object_id, timerange)
  - objects: immutable payload records; bytes live in the object store
  - flow_object_references: many-to-many join between flows and objects;
    a row here forbids deleting the referenced object
  - source_collections / flow_collections: ordered collection membership
  - storage_backends: catalog of object-store endpoints; exactly one default
  - flow_delete_requests: durable queue for the async deletion worker

Schema Strategy:
All columns are defined in the initial CREATE TABLE statement: single
source of truth, no migrations to run at this stage. Timestamps are
fixed-width ISO-8601 VARCHAR (UTC, nine fractional digits) so they sort
lexically; tags, segment_duration, and other structured values are JSON
VARCHAR columns.

Index Strategy:
Indexes cover the hot lookups: segments by flow, references by object and
by flow, flows by source, delete requests by status, and the collection
join tables by both edges.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// Table names, in dependency order.
const (
	TableSources              = "sources"
	TableFlows                = "flows"
	TableObjects              = "objects"
	TableSegments             = "segments"
	TableFlowObjectReferences = "flow_object_references"
	TableSourceCollections    = "source_collections"
	TableFlowCollections      = "flow_collections"
	TableStorageBackends      = "storage_backends"
	TableFlowDeleteRequests   = "flow_delete_requests"
)

// createTables creates the core metadata tables
func (db *DB) createTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	for _, t := range db.tableDefinitions() {
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", db.qualify(t.name), t.columns)
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}

	return nil
}

type tableDefinition struct {
	name    string
	columns string
}

// tableDefinitions returns the column DDL for every table. Column naming
// follows the entity field names.
func (db *DB) tableDefinitions() []tableDefinition {
	return []tableDefinition{
		{TableSources, `
			id VARCHAR PRIMARY KEY,
			format VARCHAR NOT NULL,
			label VARCHAR,
			description VARCHAR,
			tags VARCHAR,
			created VARCHAR NOT NULL,
			metadata_updated VARCHAR NOT NULL,
			created_by VARCHAR,
			updated_by VARCHAR`},

		{TableFlows, `
			id VARCHAR PRIMARY KEY,
			source_id VARCHAR NOT NULL,
			format VARCHAR NOT NULL,
			codec VARCHAR NOT NULL,
			label VARCHAR,
			description VARCHAR,
			tags VARCHAR,
			read_only BOOLEAN NOT NULL DEFAULT FALSE,
			metadata_version VARCHAR,
			generation INTEGER NOT NULL DEFAULT 0,
			segment_duration VARCHAR,
			container VARCHAR,
			max_bit_rate BIGINT,
			avg_bit_rate BIGINT,
			frame_width BIGINT,
			frame_height BIGINT,
			frame_rate VARCHAR,
			interlace_mode VARCHAR,
			colorspace VARCHAR,
			sample_rate BIGINT,
			bits_per_sample BIGINT,
			channels BIGINT,
			created VARCHAR NOT NULL,
			metadata_updated VARCHAR NOT NULL,
			segments_updated VARCHAR NOT NULL,
			created_by VARCHAR,
			updated_by VARCHAR`},

		{TableObjects, `
			id VARCHAR PRIMARY KEY,
			size BIGINT NOT NULL DEFAULT 0,
			created VARCHAR NOT NULL`},

		{TableSegments, `
			object_id VARCHAR NOT NULL,
			flow_id VARCHAR NOT NULL,
			timerange VARCHAR NOT NULL,
			ts_offset VARCHAR,
			last_duration VARCHAR,
			sample_offset BIGINT,
			sample_count BIGINT,
			key_frame_count BIGINT,
			storage_path VARCHAR,
			created VARCHAR NOT NULL,
			UNIQUE (flow_id, object_id, timerange)`},

		{TableFlowObjectReferences, `
			object_id VARCHAR NOT NULL,
			flow_id VARCHAR NOT NULL,
			created VARCHAR NOT NULL,
			PRIMARY KEY (object_id, flow_id)`},

		{TableSourceCollections, `
			collection_id VARCHAR NOT NULL,
			source_id VARCHAR NOT NULL,
			label VARCHAR,
			description VARCHAR,
			position INTEGER NOT NULL DEFAULT 0,
			created VARCHAR NOT NULL,
			created_by VARCHAR,
			PRIMARY KEY (collection_id, source_id)`},

		{TableFlowCollections, `
			collection_id VARCHAR NOT NULL,
			flow_id VARCHAR NOT NULL,
			label VARCHAR,
			description VARCHAR,
			position INTEGER NOT NULL DEFAULT 0,
			created VARCHAR NOT NULL,
			created_by VARCHAR,
			PRIMARY KEY (collection_id, flow_id)`},

		{TableStorageBackends, `
			id VARCHAR PRIMARY KEY,
			store_type VARCHAR NOT NULL,
			provider VARCHAR,
			store_product VARCHAR,
			region VARCHAR,
			availability_zone VARCHAR,
			label VARCHAR,
			default_storage BOOLEAN NOT NULL DEFAULT FALSE,
			created VARCHAR NOT NULL`},

		{TableFlowDeleteRequests, `
			id VARCHAR PRIMARY KEY,
			flow_id VARCHAR NOT NULL,
			timerange VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			description VARCHAR,
			segments_deleted BIGINT NOT NULL DEFAULT 0,
			error VARCHAR,
			created VARCHAR NOT NULL,
			updated VARCHAR NOT NULL,
			UNIQUE (flow_id, timerange)`},
	}
}

// createIndexes creates indexes for the hot query paths
func (db *DB) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	indexes := []struct {
		name  string
		table string
		cols  string
	}{
		{"idx_flows_source_id", TableFlows, "source_id"},
		{"idx_segments_flow_id", TableSegments, "flow_id"},
		{"idx_segments_object_id", TableSegments, "object_id"},
		{"idx_refs_object_id", TableFlowObjectReferences, "object_id"},
		{"idx_refs_flow_id", TableFlowObjectReferences, "flow_id"},
		{"idx_source_collections_source", TableSourceCollections, "source_id"},
		{"idx_flow_collections_flow", TableFlowCollections, "flow_id"},
		{"idx_delete_requests_status", TableFlowDeleteRequests, "status"},
		{"idx_delete_requests_flow", TableFlowDeleteRequests, "flow_id"},
	}

	for _, idx := range indexes {
		query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.name, db.qualify(idx.table), idx.cols)
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
