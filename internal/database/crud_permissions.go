// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/streamwarden/internal/models"
)

// CreatePermission grants a user visibility of a stream. Duplicate
// (user, stream) pairs are rejected with ErrDuplicateGrant. The
// referenced user and stream must exist.
func (db *DB) CreatePermission(ctx context.Context, perm *models.Permission) error {
	if _, err := db.GetUser(ctx, perm.UserID); err != nil {
		return err
	}
	if _, err := db.GetStream(ctx, perm.StreamID); err != nil {
		return err
	}

	if perm.ID == "" {
		perm.ID = uuid.New().String()
	}
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = time.Now()
	}

	query := `INSERT INTO permissions (id, user_id, stream_id, created_at) VALUES (?, ?, ?, ?)`
	_, err := db.exec(ctx, "insert", "permissions", query, perm.ID, perm.UserID, perm.StreamID, perm.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateGrant
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}

	return nil
}

// DeletePermission revokes a grant by ID.
func (db *DB) DeletePermission(ctx context.Context, id string) error {
	result, err := db.exec(ctx, "delete", "permissions", `DELETE FROM permissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return requireRowsAffected(result, ErrPermissionNotFound)
}

// ListPermissions retrieves all grants, optionally filtered by user.
func (db *DB) ListPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	query := `SELECT id, user_id, stream_id, created_at FROM permissions`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.query(ctx, "list", "permissions", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]models.Permission, 0)
	for rows.Next() {
		var perm models.Permission
		if err := rows.Scan(&perm.ID, &perm.UserID, &perm.StreamID, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}

	return perms, nil
}

// PermittedStreamIDs returns the set of stream ids the user may see,
// for per-connection WebSocket filtering. Admin visibility is decided
// by the caller; this only resolves explicit grants.
func (db *DB) PermittedStreamIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := db.query(ctx, "permitted_streams", "permissions",
		`SELECT stream_id FROM permissions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permitted streams: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stream id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permitted streams: %w", err)
	}

	return ids, nil
}
