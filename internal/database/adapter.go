// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/tamstore/internal/logging"
	"github.com/tomtom215/tamstore/internal/metrics"
)

// maxBatchRows is the engine limit on a single column-oriented batch call.
// Larger batches are rejected with ErrBatchTooLarge; callers split and retry.
const maxBatchRows = 10000

// ErrBatchTooLarge is returned by InsertBatch when one call carries more
// rows than the engine accepts. The caller splits the batch and retries.
var ErrBatchTooLarge = errors.New("batch exceeds engine row limit")

// Row is one table row keyed by column name. Values come back as the
// driver's native Go types.
type Row map[string]interface{}

// TableStats summarizes one table. Bytes is the storage footprint of the
// whole database: DuckDB reports block usage at database granularity.
type TableStats struct {
	Rows    int64
	Bytes   int64
	Columns int
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isValidIdentifier reports whether s is safe to splice into SQL as a
// table, schema, or column name. Everything else must be a placeholder.
func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// qualify prefixes a table name with the configured schema.
func (db *DB) qualify(table string) string {
	if db.schema == "" || db.schema == "main" {
		return table
	}
	return db.schema + "." + table
}

// Predicate is a conjunction of equality and IN filters on named columns.
// A nil Predicate matches every row.
type Predicate struct {
	conds []condition
}

type condition struct {
	column string
	values []interface{}
}

// Where starts a new predicate.
func Where() *Predicate {
	return &Predicate{}
}

// Eq adds an equality filter.
func (p *Predicate) Eq(column string, value interface{}) *Predicate {
	p.conds = append(p.conds, condition{column: column, values: []interface{}{value}})
	return p
}

// In adds a membership filter. An empty value list matches nothing.
func (p *Predicate) In(column string, values ...interface{}) *Predicate {
	p.conds = append(p.conds, condition{column: column, values: values})
	return p
}

// build renders the WHERE clause and its args. Column names are validated;
// a bad name fails the whole query rather than being spliced in.
func (p *Predicate) build() (string, []interface{}, error) {
	if p == nil || len(p.conds) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(p.conds))
	args := make([]interface{}, 0, len(p.conds))

	for _, c := range p.conds {
		if !isValidIdentifier(c.column) {
			return "", nil, fmt.Errorf("invalid column name %q in predicate", c.column)
		}
		switch len(c.values) {
		case 0:
			clauses = append(clauses, "1=0")
		case 1:
			clauses = append(clauses, c.column+" = ?")
			args = append(args, c.values[0])
		default:
			placeholders := strings.Repeat("?,", len(c.values))
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", c.column, placeholders[:len(placeholders)-1]))
			args = append(args, c.values...)
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListTables returns the table names in the configured schema.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := "SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name"
	schema := db.schema
	if schema == "" {
		schema = "main"
	}

	var names []string
	err := db.withReconnect(func() error {
		rows, err := db.conn.QueryContext(ctx, query, schema)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		names = names[:0]
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// TableExists reports whether a table is present in the configured schema.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	if !isValidIdentifier(table) {
		return false, fmt.Errorf("invalid table name %q", table)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	schema := db.schema
	if schema == "" {
		schema = "main"
	}

	var count int
	err := db.withReconnect(func() error {
		return db.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
			schema, table).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// CreateTable creates a table from a column DDL fragment.
func (db *DB) CreateTable(ctx context.Context, table, columns string) error {
	if !isValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", db.qualify(table), columns)
	err := db.withReconnect(func() error {
		_, err := db.conn.ExecContext(ctx, query)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// DropTable removes a table if it exists.
func (db *DB) DropTable(ctx context.Context, table string) error {
	if !isValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err := db.withReconnect(func() error {
		_, err := db.conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", db.qualify(table)))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// InsertRecord inserts a single row. Constraint violations surface to the
// caller for translation; they are not swallowed here.
func (db *DB) InsertRecord(ctx context.Context, table string, row Row) error {
	if !isValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if len(row) == 0 {
		return fmt.Errorf("insert into %s: empty row", table)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	columns := sortedColumns(row)
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		args[i] = row[col]
	}

	placeholders := strings.Repeat("?,", len(columns))
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.qualify(table), strings.Join(columns, ", "), placeholders[:len(placeholders)-1])

	start := time.Now()
	err := db.withReconnect(func() error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, args...)
		return err
	})
	metrics.RecordDBQuery("insert", table, time.Since(start))
	if err != nil {
		if !isConstraintViolation(err) {
			metrics.RecordDBError("insert", table, classifyDBError(err))
		}
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// InsertBatch writes column-oriented data in batches of batchSize rows
// inside one transaction. All column slices must be the same length.
// Returns the number of rows written.
func (db *DB) InsertBatch(ctx context.Context, table string, columns map[string][]interface{}, batchSize int) (int64, error) {
	if !isValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		if !isValidIdentifier(name) {
			return 0, fmt.Errorf("invalid column name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rowCount := len(columns[names[0]])
	for _, name := range names {
		if len(columns[name]) != rowCount {
			return 0, fmt.Errorf("column %s has %d values, expected %d", name, len(columns[name]), rowCount)
		}
	}
	if rowCount == 0 {
		return 0, nil
	}
	if rowCount > maxBatchRows {
		return 0, fmt.Errorf("%w: %d rows > %d", ErrBatchTooLarge, rowCount, maxBatchRows)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	placeholders := strings.Repeat("?,", len(names))
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.qualify(table), strings.Join(names, ", "), placeholders[:len(placeholders)-1])

	start := time.Now()
	var inserted int64

	err := db.withReconnect(func() error {
		inserted = 0

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				if rbErr := tx.Rollback(); rbErr != nil {
					logging.Error().Err(rbErr).Msg("Batch insert rollback failed")
				}
			}
		}()

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch insert: %w", err)
		}
		defer closeQuietly(stmt)

		args := make([]interface{}, len(names))
		for i := 0; i < rowCount; i++ {
			for j, name := range names {
				args[j] = columns[name][i]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
			inserted++

			// Commit and reopen at batch boundaries to bound memory.
			if inserted%int64(batchSize) == 0 && i+1 < rowCount {
				closeQuietly(stmt)
				if err := tx.Commit(); err != nil {
					return fmt.Errorf("failed to commit batch: %w", err)
				}
				tx, err = db.conn.BeginTx(ctx, nil)
				if err != nil {
					committed = true // nothing left to roll back
					return fmt.Errorf("failed to begin next batch: %w", err)
				}
				stmt, err = tx.PrepareContext(ctx, query)
				if err != nil {
					return fmt.Errorf("failed to prepare next batch: %w", err)
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit batch insert: %w", err)
		}
		committed = true
		return nil
	})

	metrics.RecordDBQuery("insert_batch", table, time.Since(start))
	if err != nil {
		metrics.RecordDBError("insert_batch", table, classifyDBError(err))
		return inserted, fmt.Errorf("batch insert into %s: %w", table, err)
	}
	metrics.DBBatchRowsInserted.WithLabelValues(table).Add(float64(inserted))
	return inserted, nil
}

// Query returns rows matching the predicate, at most limit (0 = all), as
// column-name→value maps.
func (db *DB) Query(ctx context.Context, table string, pred *Predicate, limit int) ([]Row, error) {
	return db.QueryOrdered(ctx, table, pred, "", false, limit, 0)
}

// QueryOrdered is Query with ORDER BY and OFFSET for paginated listings.
// orderBy must be a bare column name; empty means engine order.
func (db *DB) QueryOrdered(ctx context.Context, table string, pred *Predicate, orderBy string, descending bool, limit, offset int) ([]Row, error) {
	if !isValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	where, args, err := pred.build()
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + db.qualify(table) + where
	if orderBy != "" {
		if !isValidIdentifier(orderBy) {
			return nil, fmt.Errorf("invalid order column %q", orderBy)
		}
		query += " ORDER BY " + orderBy
		if descending {
			query += " DESC"
		}
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var results []Row
	err = db.withReconnect(func() error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		results, err = scanRows(rows)
		return err
	})
	metrics.RecordDBQuery("query", table, time.Since(start))
	if err != nil {
		metrics.RecordDBError("query", table, classifyDBError(err))
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return results, nil
}

// Count returns the number of rows matching the predicate.
func (db *DB) Count(ctx context.Context, table string, pred *Predicate) (int64, error) {
	if !isValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	where, args, err := pred.build()
	if err != nil {
		return 0, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := "SELECT COUNT(*) FROM " + db.qualify(table) + where

	start := time.Now()
	var count int64
	err = db.withReconnect(func() error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		return stmt.QueryRowContext(ctx, args...).Scan(&count)
	})
	metrics.RecordDBQuery("count", table, time.Since(start))
	if err != nil {
		metrics.RecordDBError("count", table, classifyDBError(err))
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Update sets the given columns on every row matching the predicate and
// returns the number of rows changed.
func (db *DB) Update(ctx context.Context, table string, updates Row, pred *Predicate) (int64, error) {
	if !isValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	columns := sortedColumns(updates)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+4)
	for i, col := range columns {
		sets[i] = col + " = ?"
		args = append(args, updates[col])
	}

	where, whereArgs, err := pred.build()
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("UPDATE %s SET %s%s", db.qualify(table), strings.Join(sets, ", "), where)

	start := time.Now()
	var affected int64
	err = db.withReconnect(func() error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	metrics.RecordDBQuery("update", table, time.Since(start))
	if err != nil {
		metrics.RecordDBError("update", table, classifyDBError(err))
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	return affected, nil
}

// Delete removes every row matching the predicate and returns the count.
// A nil predicate truncates the table.
func (db *DB) Delete(ctx context.Context, table string, pred *Predicate) (int64, error) {
	if !isValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	where, args, err := pred.build()
	if err != nil {
		return 0, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := "DELETE FROM " + db.qualify(table) + where

	start := time.Now()
	var affected int64
	err = db.withReconnect(func() error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	metrics.RecordDBQuery("delete", table, time.Since(start))
	if err != nil {
		metrics.RecordDBError("delete", table, classifyDBError(err))
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return affected, nil
}

// GetTableStats returns row and column counts for a table plus the
// database storage footprint.
func (db *DB) GetTableStats(ctx context.Context, table string) (TableStats, error) {
	if !isValidIdentifier(table) {
		return TableStats{}, fmt.Errorf("invalid table name %q", table)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var stats TableStats
	err := db.withReconnect(func() error {
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+db.qualify(table)).Scan(&stats.Rows); err != nil {
			return err
		}

		schema := db.schema
		if schema == "" {
			schema = "main"
		}
		if err := db.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = ? AND table_name = ?",
			schema, table).Scan(&stats.Columns); err != nil {
			return err
		}

		// DuckDB exposes block usage per database, not per table.
		var blockSize, usedBlocks sql.NullInt64
		if err := db.conn.QueryRowContext(ctx,
			"SELECT block_size, used_blocks FROM pragma_database_size()").Scan(&blockSize, &usedBlocks); err == nil {
			stats.Bytes = blockSize.Int64 * usedBlocks.Int64
		}
		return nil
	})
	if err != nil {
		return TableStats{}, fmt.Errorf("failed to stat table %s: %w", table, err)
	}
	return stats, nil
}

// scanRows drains a result set into column-name→value maps.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// sortedColumns returns the row's column names in deterministic order so
// generated SQL is cache-friendly.
func sortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// classifyDBError buckets an error for the error-type metric label.
func classifyDBError(err error) string {
	switch {
	case err == nil:
		return "none"
	case isConnectionError(err):
		return "connection"
	case isConstraintViolation(err):
		return "constraint"
	case isTransactionConflict(err):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
