// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package api implements the HTTP surface: server and stream management,
// account and permission administration, traffic queries, health, and the
// WebSocket stats endpoint. Routing uses Chi with per-group middleware;
// every JSON response is a models.APIResponse envelope.
package api
