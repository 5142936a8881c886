// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"net/http"

	"github.com/tomtom215/streamwarden/internal/logging"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

// WebSocket handles GET /ws. The connection inherits the caller's
// permissions as a snapshot taken here; grants changed while the
// connection is open apply on the next connect. Registration triggers
// the hub's catch-up burst, so a new dashboard paints without waiting
// for the next reconciliation tick.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	identity := ws.Identity{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}
	if !user.IsAdmin {
		permitted, err := h.db.PermittedStreamIDs(r.Context(), user.ID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		identity.Permitted = permitted
	}

	conn, err := h.getUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, identity)
	h.hub.Register <- client
	client.Start()

	logging.Debug().
		Str("username", sanitizeLogValue(user.Username)).
		Bool("is_admin", user.IsAdmin).
		Msg("WebSocket client connected")
}
