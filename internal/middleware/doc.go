// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/*
Package middleware provides HTTP middleware components for the
application: gzip compression, request ID tracking for distributed
tracing, and Prometheus request instrumentation. These sit alongside
the authentication middleware in internal/auth to form the full
request-processing stack assembled by internal/api.

All components are thread-safe: compression uses pooled per-request
gzip writers, request IDs live in immutable contexts, and metrics use
Prometheus atomic operations.
*/
package middleware
