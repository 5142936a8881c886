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

// CreateUser creates a new dashboard account. The password must already
// be hashed by the caller.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt

	query := `INSERT INTO users (id, username, password_hash, is_admin, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := db.exec(ctx, "insert", "users", query,
		user.ID, user.Username, user.PasswordHash, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUsernameConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, password_hash, is_admin, created_at, updated_at
	FROM users WHERE id = ?`

	return scanUser(db.queryRow(ctx, "get", "users", query, id))
}

// GetUserByUsername retrieves a user by username, for login.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, is_admin, created_at, updated_at
	FROM users WHERE username = ?`

	return scanUser(db.queryRow(ctx, "get_by_username", "users", query, username))
}

// ListUsers retrieves all users ordered by creation time.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, username, password_hash, is_admin, created_at, updated_at
	FROM users ORDER BY created_at ASC`

	rows, err := db.query(ctx, "list", "users", query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CountAdmins returns the number of users with the admin flag set.
func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := db.queryRow(ctx, "count_admins", "users", `SELECT COUNT(*) FROM users WHERE is_admin = true`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// DeleteUser removes a user and their permission grants. Deleting the
// sole remaining admin is rejected with ErrLastAdmin and leaves the
// table unchanged.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var isAdmin bool
	err = tx.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = ?`, id).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if isAdmin {
		var adminCount int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = true`).Scan(&adminCount); err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if adminCount <= 1 {
			return ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user permissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}

// scanUser scans a single row into a User struct.
func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
