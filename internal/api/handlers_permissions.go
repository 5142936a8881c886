// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/streamwarden/internal/models"
)

// ListAllPermissions handles GET /api/permissions, optionally narrowed
// with ?user_id=.
func (h *Handler) ListAllPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.db.ListPermissions(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, perms)
}

// ListPermissions handles GET /api/users/{id}/permissions.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.db.GetUser(r.Context(), userID); err != nil {
		respondStoreError(w, err)
		return
	}

	perms, err := h.db.ListPermissions(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, perms)
}

// CreatePermission handles POST /api/permissions. The referenced user
// and stream must both exist; duplicate grants are 400s.
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePermissionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	perm := &models.Permission{
		UserID:   req.UserID,
		StreamID: req.StreamID,
	}
	if err := h.db.CreatePermission(r.Context(), perm); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, perm)
}

// DeletePermission handles DELETE /api/permissions/{id}.
func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeletePermission(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"id": id})
}
