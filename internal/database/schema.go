// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/*
schema.go - Database Schema Management

Tables:
  - users: dashboard accounts with bcrypt password hashes and admin flag
  - servers: registered vendor media-server endpoints with denormalized
    connectivity status
  - streams: vendor-reported stream keys, one row per (server, key),
    with the last normalized status snapshot as a JSON column
  - permissions: (user, stream) visibility grants, unique per pair
  - monthly_traffic_stats: cumulative byte counters per (stream, year, month)

All columns are defined in the initial CREATE TABLE statements; the
UNIQUE constraints back the ON CONFLICT upserts used by reconciliation.
Referential cleanup (server deletion cascading to streams, permissions
and traffic) is performed transactionally in the CRUD layer since DuckDB
does not support cascading foreign keys.
*/
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS servers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			auth_mode TEXT NOT NULL,
			username TEXT,
			password TEXT,
			api_key TEXT,
			status TEXT NOT NULL DEFAULT 'offline',
			last_error TEXT,
			last_error_at TIMESTAMP,
			last_successful_auth_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS streams (
			id UUID PRIMARY KEY,
			server_id UUID NOT NULL,
			stream_key TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			last_seen TIMESTAMP NOT NULL,
			miss_count INTEGER NOT NULL DEFAULT 0,
			status_snapshot JSON,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (server_id, stream_key)
		)`,

		`CREATE TABLE IF NOT EXISTS permissions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			stream_id UUID NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, stream_id)
		)`,

		`CREATE TABLE IF NOT EXISTS monthly_traffic_stats (
			id UUID PRIMARY KEY,
			stream_id UUID NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			bytes_in BIGINT NOT NULL DEFAULT 0,
			bytes_out BIGINT NOT NULL DEFAULT 0,
			last_updated TIMESTAMP NOT NULL,
			UNIQUE (stream_id, year, month)
		)`,
	}
}
