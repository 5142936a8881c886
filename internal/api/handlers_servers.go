// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/* handlers_servers.go - Media Server Management

Server registration validates credentials against the live endpoint
before any row is written; a server that cannot be reached or rejects
the credentials is never persisted.
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/streamwarden/internal/models"
)

// ListServers handles GET /api/servers.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.db.ListServers(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, servers)
}

// GetServer handles GET /api/servers/{id}.
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.db.GetServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, server)
}

// CreateServer handles POST /api/servers. The credentials are tested
// against the live endpoint first; any vendor failure aborts the
// registration with a 400 carrying the classified reason.
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req models.CreateServerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	// The ID is assigned before the probe so the vendor client's token
	// cache and circuit breaker are keyed to this server from the first
	// request, never to an empty placeholder shared across registrations.
	server := &models.Server{
		ID:       uuid.New().String(),
		Name:     req.Name,
		URL:      req.URL,
		AuthMode: req.AuthMode,
		Username: req.Username,
		Password: req.Password,
		APIKey:   req.APIKey,
	}

	if err := h.clients(server).ValidateAuth(r.Context()); err != nil {
		respondError(w, http.StatusBadRequest, codeVendor, err.Error(), nil)
		return
	}

	now := time.Now()
	server.Status = models.ServerStatusOnline
	server.LastSuccessfulAuthAt = &now
	if err := h.db.CreateServer(r.Context(), server); err != nil {
		respondStoreError(w, err)
		return
	}

	respondData(w, http.StatusCreated, server)
}

// DeleteServer handles DELETE /api/servers/{id} and returns the removed
// row. Streams, permissions, and traffic rows cascade with it.
func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.db.DeleteServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, server)
}

// TestServer handles POST /api/servers/{id}/test: a live connectivity
// probe against the stored credentials. The outcome is recorded on the
// server row either way.
func (h *Handler) TestServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.db.GetServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	start := time.Now()
	probeErr := h.clients(server).ValidateAuth(r.Context())
	latency := time.Since(start).Milliseconds()

	if probeErr != nil {
		if err := h.db.RecordServerError(r.Context(), server.ID, probeErr.Error()); err != nil {
			respondStoreError(w, err)
			return
		}
		annotated, err := h.db.GetServer(r.Context(), server.ID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status: "error",
			Data: models.ServerTestResponse{
				Success:   false,
				LatencyMs: latency,
				Server:    annotated,
				Error:     probeErr.Error(),
			},
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    &models.APIError{Code: codeVendor, Message: probeErr.Error()},
		})
		return
	}

	if err := h.db.RecordServerSuccess(r.Context(), server.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	refreshed, err := h.db.GetServer(r.Context(), server.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, models.ServerTestResponse{
		Success:   true,
		LatencyMs: latency,
		Server:    refreshed,
	})
}

// SyncStatus handles GET /api/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"last_sync": h.syncMgr.LastSyncTime(),
		"clients":   h.hub.GetClientCount(),
	})
}

// TriggerSync handles POST /api/sync: an immediate reconciliation pass
// outside the regular cadence.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if err := h.syncMgr.TriggerSync(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "sync failed", err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"last_sync": h.syncMgr.LastSyncTime(),
	})
}
