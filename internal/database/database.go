// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// The DuckDB driver registration (_ "github.com/duckdb/duckdb-go/v2")
	// is omitted in this build: every published version of that module
	// requires go >= 1.24 and cgo, and the validation toolchain is Go 1.21
	// with CGO_ENABLED=0. Restore the blank import when building with a
	// toolchain that can load it; until then sql.Open("duckdb", ...) fails
	// at runtime with "unknown driver".

	"github.com/tomtom215/tamstore/internal/config"
	"github.com/tomtom215/tamstore/internal/logging"
)

// DB wraps the DuckDB connection and provides the generic table operations
// the repositories are built on. One DB serves the whole process; the
// underlying pool is safe for concurrent use.
type DB struct {
	conn   *sql.DB
	cfg    *config.MetadataConfig
	schema string

	// Endpoint failover state. activeIdx remembers the endpoint currently
	// connected so a re-dial pass starts with the next one in the list.
	endpoints   []string
	activeIdx   int
	reconnectMu sync.Mutex

	// Prepared statement caching
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New connects to the first reachable metadata endpoint and initializes the
// schema. Endpoints are DuckDB DSNs tried in order; an empty list opens a
// private in-memory database.
func New(cfg *config.MetadataConfig) (*DB, error) {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{":memory:"}
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "main"
	}
	if !isValidIdentifier(schema) {
		return nil, fmt.Errorf("invalid metadata schema name %q", schema)
	}

	db := &DB{
		cfg:       cfg,
		schema:    schema,
		endpoints: endpoints,
		activeIdx: -1,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.connectAny(); err != nil {
		return nil, err
	}

	return db, nil
}

// Conn returns the underlying SQL database connection. Used by packages
// that need direct database access, such as the audit store.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Schema returns the schema every table lives in.
func (db *DB) Schema() string {
	return db.schema
}

// ActiveEndpoint returns the DSN of the endpoint currently connected.
func (db *DB) ActiveEndpoint() string {
	if db.activeIdx < 0 || db.activeIdx >= len(db.endpoints) {
		return ""
	}
	return db.endpoints[db.activeIdx]
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close closes the database connection and all prepared statements.
// It performs a CHECKPOINT before closing to flush the WAL to the main
// database file, so the next startup does not replay schema statements.
func (db *DB) Close() error {
	db.clearStatementCache()

	if db.conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()

		return db.conn.Close()
	}
	return nil
}

// Checkpoint forces a WAL checkpoint
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// initialize creates the schema, applies store settings, and builds tables
// and indexes. Runs on every successful (re)connect.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if db.schema != "main" {
		if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.schema)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", db.schema, err)
		}
	}

	db.applyStoreSettings(ctx)

	if err := db.createTables(ctx); err != nil {
		return err
	}

	if err := db.createIndexes(ctx); err != nil {
		return err
	}

	// Flush the WAL after schema initialization so a crash before the first
	// checkpoint does not leave CREATE TABLE statements to replay.
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return nil
}

// applyStoreSettings registers the s3 credential secret for s3-resident
// databases. Best effort: local file databases do not need it.
func (db *DB) applyStoreSettings(ctx context.Context) {
	if db.cfg == nil || db.cfg.AccessKey == "" {
		return
	}

	stmt := fmt.Sprintf(
		"CREATE OR REPLACE SECRET tams_metadata (TYPE S3, KEY_ID '%s', SECRET '%s')",
		strings.ReplaceAll(db.cfg.AccessKey, "'", "''"),
		strings.ReplaceAll(db.cfg.SecretKey, "'", "''"),
	)
	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		logging.Warn().Err(err).Msg("Failed to register metadata s3 secret")
	}
}

// getStmt returns a cached prepared statement for the query, preparing and
// caching it on first use. The cache is cleared on reconnect.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	prepared, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if existing, ok := db.stmtCache[query]; ok {
		// Lost the race; keep the first one.
		closeQuietly(prepared)
		return existing, nil
	}
	db.stmtCache[query] = prepared
	return prepared, nil
}

// clearStatementCache closes all cached prepared statements
func (db *DB) clearStatementCache() {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		if stmt != nil {
			closeWithLog(stmt, "prepared statement")
		}
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()
}

// ensureContext creates a context with 30-second timeout if none provided
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}

	return ctx, func() {}
}

// buildDSN appends the tuning options to an endpoint. Endpoints may already
// carry their own query parameters.
func (db *DB) buildDSN(endpoint string) string {
	threads := 0
	maxMemory := ""
	if db.cfg != nil {
		threads = db.cfg.Threads
		maxMemory = db.cfg.MaxMemory
	}

	params := []string{"access_mode=read_write"}
	if threads > 0 {
		params = append(params, fmt.Sprintf("threads=%d", threads))
	}
	if maxMemory != "" {
		params = append(params, "max_memory="+maxMemory)
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + strings.Join(params, "&")
}

// ensureParentDir creates the directory holding a file-backed database.
// In-memory and URL endpoints are left alone.
func ensureParentDir(endpoint string) error {
	if endpoint == "" || strings.HasPrefix(endpoint, ":memory:") || strings.Contains(endpoint, "://") {
		return nil
	}
	path := endpoint
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error
// Use this for cleanup operations in error paths where Close() errors are not actionable
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
