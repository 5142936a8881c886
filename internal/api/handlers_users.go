// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/models"
)

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

// GetUser handles GET /api/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

// CreateUser handles POST /api/users. Passwords are bcrypt-hashed before
// they touch the database; duplicate usernames are 400s.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to hash password", err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusCreated, user)
}

// DeleteUser handles DELETE /api/users/{id}. Deleting the last remaining
// admin is refused with a 400 so the dashboard cannot lock itself out.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")})
}
