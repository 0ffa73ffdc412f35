// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
)

// connectAny walks the endpoint list once, starting after the endpoint that
// was active last, and connects to the first that answers a ping. The index
// of the winner is remembered so the next pass rotates instead of hammering
// a dead endpoint first.
func (db *DB) connectAny() error {
	var lastErr error

	for i := 0; i < len(db.endpoints); i++ {
		idx := (db.activeIdx + 1 + i) % len(db.endpoints)
		endpoint := db.endpoints[idx]

		conn, err := db.dial(endpoint)
		if err != nil {
			lastErr = fmt.Errorf("endpoint %s: %w", endpoint, err)
			logging.Warn().Str("endpoint", endpoint).Err(err).Msg("Metadata endpoint unreachable")
			continue
		}

		db.conn = conn
		db.activeIdx = idx
		metrics.DBActiveEndpoint.Set(float64(idx))

		if err := db.configureConnectionPool(); err != nil {
			closeQuietly(conn)
			lastErr = fmt.Errorf("endpoint %s: failed to configure pool: %w", endpoint, err)
			continue
		}

		if err := db.initialize(); err != nil {
			closeQuietly(conn)
			lastErr = fmt.Errorf("endpoint %s: failed to initialize: %w", endpoint, err)
			continue
		}

		logging.Info().Str("endpoint", endpoint).Int("index", idx).Msg("Metadata store connected")
		return nil
	}

	return fmt.Errorf("no metadata endpoint reachable after %d attempts: %w", len(db.endpoints), lastErr)
}

// dial opens and pings one endpoint.
func (db *DB) dial(endpoint string) (*sql.DB, error) {
	if err := ensureParentDir(endpoint); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("duckdb", db.buildDSN(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return conn, nil
}

// reconnect re-establishes the connection after a detected loss. One pass
// over the endpoint list; persistent failure surfaces to the caller as a
// storage error. Concurrent callers coalesce on the mutex: whoever arrives
// second finds a live connection and returns immediately.
func (db *DB) reconnect() error {
	db.reconnectMu.Lock()
	defer db.reconnectMu.Unlock()

	// Check if connection is actually dead before reconnecting
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if db.conn != nil {
		if err := db.Ping(ctx); err == nil {
			return nil // Connection is alive
		}
	}

	metrics.DBConnectionFailovers.Inc()
	logging.Warn().Str("endpoint", db.ActiveEndpoint()).Msg("Metadata connection lost, starting failover pass")

	db.clearStatementCache()
	if db.conn != nil {
		closeWithLog(db.conn, "database connection")
		db.conn = nil
	}

	return db.connectAny()
}

// withReconnect runs fn and, when it fails with a connection error, makes
// one failover pass and retries fn once.
func (db *DB) withReconnect(fn func() error) error {
	err := fn()
	if err == nil || !isConnectionError(err) {
		return err
	}

	if rcErr := db.reconnect(); rcErr != nil {
		return fmt.Errorf("reconnect failed: %w (original error: %v)", rcErr, err)
	}

	return fn()
}

// configureConnectionPool sets connection pool parameters
func (db *DB) configureConnectionPool() error {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)

	return nil
}

// isConnectionError checks if an error indicates database connection loss
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "bad connection") ||
		strings.Contains(errMsg, "driver: bad connection") ||
		strings.Contains(errMsg, "database is closed") ||
		strings.Contains(errMsg, "sql: database is closed")
}

// isConstraintViolation checks if an error is a DuckDB unique/primary key
// constraint failure.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "Constraint Error") ||
		strings.Contains(errMsg, "violates unique constraint") ||
		strings.Contains(errMsg, "violates primary key constraint") ||
		strings.Contains(errMsg, "Duplicate key")
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update")
}
