// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package models provides data models for the application.
package models

import "time"

// User represents a dashboard account. Non-admin users only see streams
// they hold an explicit permission for.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CreateUserRequest represents a request to create a dashboard account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	IsAdmin  bool   `json:"is_admin"`
}

// LoginRequest represents a credential exchange for a session token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
}

// Permission is a (user, stream) visibility grant. Pairs are unique.
type Permission struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	StreamID  string    `json:"stream_id" db:"stream_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreatePermissionRequest represents a request to grant stream visibility.
type CreatePermissionRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid4"`
	StreamID string `json:"stream_id" validate:"required,uuid4"`
}
