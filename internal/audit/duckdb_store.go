// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/tamstore/internal/logging"
)

// DuckDBStore implements Store on the metadata database. The error_audit
// table lives beside the entity tables in the same schema.
type DuckDBStore struct {
	db    *sql.DB
	table string
	mu    sync.Mutex
}

// NewDuckDBStore creates a store writing to schema.error_audit. An empty
// schema leaves the table unqualified.
func NewDuckDBStore(db *sql.DB, schema string) *DuckDBStore {
	table := "error_audit"
	if schema != "" {
		table = schema + "." + table
	}
	return &DuckDBStore{db: db, table: table}
}

// CreateTable creates the error_audit table and its indexes. Call once at
// startup, after the schema exists.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			code VARCHAR NOT NULL,
			severity VARCHAR NOT NULL,
			method VARCHAR NOT NULL,
			path VARCHAR NOT NULL,
			request_id VARCHAR,
			message VARCHAR NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_error_audit_timestamp ON %s(timestamp);
		CREATE INDEX IF NOT EXISTS idx_error_audit_severity ON %s(severity);
	`, s.table, s.table, s.table)

	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create error_audit schema: %w", err)
		}
	}

	logging.Debug().Str("table", s.table).Msg("Error audit table ready")
	return nil
}

// Save persists one event.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, timestamp, code, severity, method, path, request_id, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp.UTC(),
		event.Code,
		event.Severity,
		event.Method,
		event.Path,
		nullable(event.RequestID),
		event.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events, newest first.
func (s *DuckDBStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, timestamp, code, severity, method, path, request_id, message
		FROM %s ORDER BY timestamp DESC LIMIT ?
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var requestID sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Code, &e.Severity, &e.Method, &e.Path, &requestID, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.RequestID = requestID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// CountBySeverity returns event counts grouped by severity.
func (s *DuckDBStore) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT severity, COUNT(*) FROM %s GROUP BY severity", s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[severity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating severity counts: %w", err)
	}
	return counts, nil
}

// Prune deletes events older than the cutoff.
func (s *DuckDBStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", s.table)
	result, err := s.db.ExecContext(ctx, query, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return deleted, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
