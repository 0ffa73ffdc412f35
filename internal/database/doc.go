// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

// Package database is the metadata layer of the store. It has three floors:
//
// Adapter (database.go, connection.go, adapter.go): a thin typed wrapper
// over DuckDB. Generic table operations (create/drop/exists, single-row
// insert, column-oriented batch insert, predicate queries, update, delete,
// table stats) plus connection failover across an ordered endpoint list.
// The adapter knows nothing about Sources or Flows.
//
// Repositories (repo_*.go): one per entity. Each encodes its domain model
// to a column map, decodes rows back with forgiving NULL handling, and
// implements the entity-specific queries. Every DB call goes through the
// adapter; repositories never touch database/sql directly.
//
// Integrity engine (integrity.go): the cascade/block rules. Deleting a
// Source with cascade=false is refused while dependent Flows exist;
// cascade=true walks Source → Flows → Segments. Object rows and bytes are
// never deleted by a cascade; only the flow_object_references join rows
// are cleaned up, and an Object row can only be removed once no reference
// remains.
//
// Timestamps are persisted as fixed-width ISO-8601 strings (UTC, nine
// fractional digits) so they sort lexically. Tags and other structured
// fields are JSON columns.
package database
