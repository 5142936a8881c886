// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package database provides DuckDB-backed persistence for users,
// servers, streams, permissions and monthly traffic stats.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/metrics"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for the database file.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool()

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// NewInMemory creates an in-memory database for tests.
func NewInMemory() (*DB, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	db := &DB{conn: conn, cfg: &config.DatabaseConfig{}}
	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// exec runs a write statement, recording its duration and outcome under
// the given operation and table labels.
func (db *DB) exec(ctx context.Context, operation, table, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
	return result, err
}

// query runs a read statement with the same instrumentation as exec.
func (db *DB) query(ctx context.Context, operation, table, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
	return rows, err
}

// queryRow runs a single-row read. Scan errors surface at the caller, so
// only the duration is recorded here.
func (db *DB) queryRow(ctx context.Context, operation, table, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, query, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), nil)
	return row
}

// Conn exposes the underlying connection for advanced usage.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close flushes the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return db.conn.Close()
}

// closeQuietly closes a resource and explicitly ignores any error.
// Used in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
// DuckDB reports these as message text, not a typed error.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "unique constraint") || strings.Contains(errMsg, "duplicate key")
}

// jsonToString converts a DuckDB JSON value to a string.
func jsonToString(v any) string {
	if v == nil {
		return "{}"
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case map[string]any:
		// DuckDB returns JSON columns as map[string]any
		bytes, err := json.Marshal(val)
		if err != nil {
			return "{}"
		}
		return string(bytes)
	default:
		return "{}"
	}
}
