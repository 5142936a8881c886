// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/* handlers.go - HTTP Handler Wiring

Handler bundles the dependencies every endpoint needs: the database, the
reconciliation manager, the vendor client factory, the JWT manager, and
the WebSocket hub. Vendor clients are built per request through the
factory so credential edits take effect immediately.
*/

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/database"
	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/models"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

// SyncManager is the slice of the reconciliation loop the handlers use.
type SyncManager interface {
	LastSyncTime() time.Time
	TriggerSync(ctx context.Context) error
}

// Handler holds all HTTP handlers and their dependencies.
type Handler struct {
	db         *database.DB
	clients    flussonic.Factory
	syncMgr    SyncManager
	jwtManager *auth.JWTManager
	hub        *ws.Hub
	cfg        *config.Config
	startTime  time.Time

	upgrader     *websocket.Upgrader
	upgraderOnce sync.Once
}

// NewHandler creates a new API handler.
func NewHandler(db *database.DB, clients flussonic.Factory, syncMgr SyncManager, jwtManager *auth.JWTManager, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		db:         db,
		clients:    clients,
		syncMgr:    syncMgr,
		jwtManager: jwtManager,
		hub:        hub,
		cfg:        cfg,
		startTime:  time.Now(),
	}
}

// getUpgrader lazily constructs the WebSocket upgrader so origin checks
// see the final config.
func (h *Handler) getUpgrader() *websocket.Upgrader {
	h.upgraderOnce.Do(func() {
		h.upgrader = &websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			CheckOrigin:      h.checkWebSocketOrigin,
		}
	})
	return h.upgrader
}

// checkWebSocketOrigin validates the Origin header against the configured
// CORS origins. Browsers always send Origin on WebSocket handshakes, so an
// empty header means a non-browser client spoofing a handshake and is
// rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Str("remote_addr", r.RemoteAddr).Msg("WebSocket handshake without Origin header rejected")
		return false
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket handshake from disallowed origin rejected")
	return false
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		logging.Error().Err(err).Msg("Health check database ping failed")
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, httpStatus, &models.APIResponse{
		Status: "success",
		Data: models.HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(h.startTime).String(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}
