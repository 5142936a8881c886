// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package models

import "time"

// Server connectivity states.
const (
	ServerStatusOnline  = "online"
	ServerStatusOffline = "offline"
)

// Authentication schemes for vendor API calls.
const (
	AuthModeBasic  = "basic"  // username/password on every request
	AuthModeBearer = "bearer" // token exchange with in-memory cache
)

// Server represents a registered vendor media-server endpoint.
// Status fields are a denormalized snapshot of the last connectivity
// attempt so the UI can render errors without a live round trip.
type Server struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	URL      string `json:"url" db:"url"`
	AuthMode string `json:"auth_mode" db:"auth_mode"`
	Username string `json:"username,omitempty" db:"username"`
	Password string `json:"-" db:"password"`
	APIKey   string `json:"-" db:"api_key"`

	Status               string     `json:"status" db:"status"`
	LastError            string     `json:"last_error,omitempty" db:"last_error"`
	LastErrorAt          *time.Time `json:"last_error_at,omitempty" db:"last_error_at"`
	LastSuccessfulAuthAt *time.Time `json:"last_successful_auth_at,omitempty" db:"last_successful_auth_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateServerRequest represents a request to register a media server.
// Credentials are validated against the live endpoint before the row
// is written.
type CreateServerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	URL      string `json:"url" validate:"required,url"`
	AuthMode string `json:"auth_mode" validate:"required,oneof=basic bearer"`
	Username string `json:"username" validate:"required_if=AuthMode basic"`
	Password string `json:"password" validate:"required_if=AuthMode basic"`
	APIKey   string `json:"api_key" validate:"required_if=AuthMode bearer"`
}

// ServerTestResponse reports the outcome of a connectivity test.
type ServerTestResponse struct {
	Success   bool    `json:"success"`
	LatencyMs int64   `json:"latency_ms"`
	Server    *Server `json:"server,omitempty"`
	Error     string  `json:"error,omitempty"`
}
