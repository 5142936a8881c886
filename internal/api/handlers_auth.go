// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/database"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/models"
)

// Login handles POST /api/auth/login. Unknown usernames and wrong
// passwords return the same 401 so the endpoint cannot be used to
// enumerate accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, codeAuthError, "invalid username or password", nil)
			return
		}
		respondStoreError(w, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Login attempt with invalid password")
		respondError(w, http.StatusUnauthorized, codeAuthError, "invalid username or password", nil)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to issue session token", err)
		return
	}

	respondData(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.jwtManager.SessionTimeout()),
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
	})
}

// Me handles GET /api/auth/me and returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", nil)
		return
	}

	user, err := h.db.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}
