// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status is "success" or "error"; Error is populated only for errors.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries structured error details.
//
// Codes used across the API:
//   - VALIDATION_ERROR: malformed request body or parameters (400)
//   - AUTH_ERROR: missing or invalid session (401)
//   - FORBIDDEN: insufficient role (403)
//   - NOT_FOUND: unknown resource id (404)
//   - VENDOR_ERROR: the media server rejected or failed the request (400)
//   - CONFLICT: uniqueness violation such as a duplicate grant (400)
//   - INTERNAL_ERROR: unexpected failure, detail logged server-side (500)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}
