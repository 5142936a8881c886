// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package metrics provides Prometheus instrumentation for the API
// surface, the DuckDB persistence layer, vendor API calls, the
// reconciliation loop, and WebSocket fan-out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Vendor API metrics
	VendorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_request_duration_seconds",
			Help:    "Duration of vendor media-server API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	VendorRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_request_errors_total",
			Help: "Total number of failed vendor media-server API calls",
		},
		[]string{"operation", "kind"},
	)

	VendorTokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vendor_token_refreshes_total",
			Help: "Total number of bearer token fetches against vendor servers",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vendor_circuit_breaker_state",
			Help: "Circuit breaker state per vendor server (0=closed, 1=half-open, 2=open)",
		},
		[]string{"server"},
	)

	// Reconciliation metrics
	SyncTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_tick_duration_seconds",
			Help:    "Duration of a full reconciliation tick across all servers",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncStreamsReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_streams_reconciled_total",
			Help: "Total number of stream upserts performed by reconciliation",
		},
	)

	SyncServerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_server_failures_total",
			Help: "Total number of per-server reconciliation failures",
		},
		[]string{"server"},
	)

	SyncTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ticks_skipped_total",
			Help: "Total number of ticks skipped because the previous tick was still running",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last fully successful reconciliation tick",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket frames sent",
		},
	)

	WebSocketClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_clients_dropped_total",
			Help: "Total number of clients dropped for slow consumption",
		},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordVendorRequest records a vendor API call metric.
func RecordVendorRequest(operation string, duration time.Duration, errKind string) {
	VendorRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errKind != "" {
		VendorRequestErrors.WithLabelValues(operation, errKind).Inc()
	}
}
