// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/streamwarden/internal/models"
)

// CreateServer registers a new media server. Callers are expected to
// have validated live connectivity first; no row is written otherwise.
func (db *DB) CreateServer(ctx context.Context, server *models.Server) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = time.Now()
	}
	server.UpdatedAt = server.CreatedAt
	if server.Status == "" {
		server.Status = models.ServerStatusOffline
	}

	query := `INSERT INTO servers (
		id, name, url, auth_mode, username, password, api_key,
		status, last_error, last_error_at, last_successful_auth_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.exec(ctx, "insert", "servers", query,
		server.ID, server.Name, server.URL, server.AuthMode,
		server.Username, server.Password, server.APIKey,
		server.Status, nullString(server.LastError), server.LastErrorAt, server.LastSuccessfulAuthAt,
		server.CreatedAt, server.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return nil
}

// GetServer retrieves a server by ID.
func (db *DB) GetServer(ctx context.Context, id string) (*models.Server, error) {
	row := db.queryRow(ctx, "get", "servers", serverSelectColumns+` WHERE id = ?`, id)
	return scanServer(row)
}

// ListServers retrieves all registered servers.
func (db *DB) ListServers(ctx context.Context) ([]models.Server, error) {
	rows, err := db.query(ctx, "list", "servers", serverSelectColumns+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	servers := make([]models.Server, 0)
	for rows.Next() {
		server, err := scanServerRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, *server)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating servers: %w", err)
	}

	return servers, nil
}

// DeleteServer removes a server and cascades to its streams, their
// permission grants and their traffic stats in one transaction. Returns
// the deleted row.
func (db *DB) DeleteServer(ctx context.Context, id string) (*models.Server, error) {
	server, err := db.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cascade := []string{
		`DELETE FROM permissions WHERE stream_id IN (SELECT id FROM streams WHERE server_id = ?)`,
		`DELETE FROM monthly_traffic_stats WHERE stream_id IN (SELECT id FROM streams WHERE server_id = ?)`,
		`DELETE FROM streams WHERE server_id = ?`,
		`DELETE FROM servers WHERE id = ?`,
	}
	for _, query := range cascade {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return nil, fmt.Errorf("failed to delete server %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit server deletion: %w", err)
	}

	return server, nil
}

// RecordServerError updates the denormalized error snapshot after a
// failed vendor call so the UI can show it without a live round trip.
func (db *DB) RecordServerError(ctx context.Context, id string, vendorErr string) error {
	now := time.Now()
	query := `UPDATE servers SET
		status = ?, last_error = ?, last_error_at = ?, updated_at = ?
	WHERE id = ?`

	result, err := db.exec(ctx, "record_error", "servers", query,
		models.ServerStatusOffline, vendorErr, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to record server error: %w", err)
	}
	return requireRowsAffected(result, ErrServerNotFound)
}

// RecordServerSuccess clears the error snapshot after a successful
// vendor call.
func (db *DB) RecordServerSuccess(ctx context.Context, id string) error {
	now := time.Now()
	query := `UPDATE servers SET
		status = ?, last_error = NULL, last_error_at = NULL,
		last_successful_auth_at = ?, updated_at = ?
	WHERE id = ?`

	result, err := db.exec(ctx, "record_success", "servers", query,
		models.ServerStatusOnline, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to record server success: %w", err)
	}
	return requireRowsAffected(result, ErrServerNotFound)
}

const serverSelectColumns = `SELECT
	id, name, url, auth_mode, username, password, api_key,
	status, last_error, last_error_at, last_successful_auth_at,
	created_at, updated_at
FROM servers`

// scanServer scans a single row into a Server struct.
func scanServer(row *sql.Row) (*models.Server, error) {
	var server models.Server
	var username, password, apiKey, lastError sql.NullString
	var lastErrorAt, lastAuthAt sql.NullTime

	err := row.Scan(
		&server.ID, &server.Name, &server.URL, &server.AuthMode,
		&username, &password, &apiKey,
		&server.Status, &lastError, &lastErrorAt, &lastAuthAt,
		&server.CreatedAt, &server.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to scan server: %w", err)
	}

	applyServerNullables(&server, username, password, apiKey, lastError, lastErrorAt, lastAuthAt)
	return &server, nil
}

// scanServerRows scans rows into a Server struct.
func scanServerRows(rows *sql.Rows) (*models.Server, error) {
	var server models.Server
	var username, password, apiKey, lastError sql.NullString
	var lastErrorAt, lastAuthAt sql.NullTime

	err := rows.Scan(
		&server.ID, &server.Name, &server.URL, &server.AuthMode,
		&username, &password, &apiKey,
		&server.Status, &lastError, &lastErrorAt, &lastAuthAt,
		&server.CreatedAt, &server.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	applyServerNullables(&server, username, password, apiKey, lastError, lastErrorAt, lastAuthAt)
	return &server, nil
}

func applyServerNullables(server *models.Server, username, password, apiKey, lastError sql.NullString, lastErrorAt, lastAuthAt sql.NullTime) {
	if username.Valid {
		server.Username = username.String
	}
	if password.Valid {
		server.Password = password.String
	}
	if apiKey.Valid {
		server.APIKey = apiKey.String
	}
	if lastError.Valid {
		server.LastError = lastError.String
	}
	if lastErrorAt.Valid {
		server.LastErrorAt = &lastErrorAt.Time
	}
	if lastAuthAt.Valid {
		server.LastSuccessfulAuthAt = &lastAuthAt.Time
	}
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireRowsAffected maps a zero-row update to the given sentinel.
func requireRowsAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
