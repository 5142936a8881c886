// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/* handlers_streams.go - Stream Queries and Push Management

Every stream read is filtered through the caller's permissions: admins
see everything, other accounts only the streams they hold a grant for.
The filter is applied in SQL, never in the handler.
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/models"
)

// currentUser resolves the authenticated account from the request
// claims. Reading the row back means admin revocations apply on the
// next request instead of at token expiry.
func (h *Handler) currentUser(r *http.Request) (*models.User, error) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return nil, nil
	}
	return h.db.GetUser(r.Context(), claims.UserID)
}

// ListStreams handles GET /api/streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	streams, err := h.db.ListStreamsForUser(r.Context(), user)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, streams)
}

// ListServerStreams handles GET /api/servers/{id}/streams.
func (h *Handler) ListServerStreams(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	serverID := chi.URLParam(r, "id")
	if _, err := h.db.GetServer(r.Context(), serverID); err != nil {
		respondStoreError(w, err)
		return
	}

	streams, err := h.db.ListServerStreamsForUser(r.Context(), serverID, user)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, streams)
}

// GetStream handles GET /api/streams/{id}.
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	stream, err := h.db.GetStream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ok, err := h.userCanSee(r, user, stream.ID); err != nil {
		respondStoreError(w, err)
		return
	} else if !ok {
		// Indistinguishable from a missing row so stream IDs cannot be probed.
		respondError(w, http.StatusNotFound, codeNotFound, "stream not found", nil)
		return
	}
	respondData(w, http.StatusOK, stream)
}

// userCanSee reports whether user may read the given stream.
func (h *Handler) userCanSee(r *http.Request, user *models.User, streamID string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}
	permitted, err := h.db.PermittedStreamIDs(r.Context(), user.ID)
	if err != nil {
		return false, err
	}
	_, ok := permitted[streamID]
	return ok, nil
}

// StreamTraffic handles GET /api/streams/{id}/traffic?months=12 and
// returns the monthly byte counters, most recent month first.
func (h *Handler) StreamTraffic(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	stream, err := h.db.GetStream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ok, err := h.userCanSee(r, user, stream.ID); err != nil {
		respondStoreError(w, err)
		return
	} else if !ok {
		respondError(w, http.StatusNotFound, codeNotFound, "stream not found", nil)
		return
	}

	months := getIntParam(r, "months", 12)
	if months < 1 || months > 120 {
		respondError(w, http.StatusBadRequest, codeValidation, "months must be between 1 and 120", nil)
		return
	}

	stats, err := h.db.ListMonthlyTraffic(r.Context(), stream.ID, months)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

// AddPushDestination handles POST /api/streams/{id}/push. The target URL
// must use an rtmp:// or rtmps:// scheme; the mutation is applied on the
// vendor server, not locally.
func (h *Handler) AddPushDestination(w http.ResponseWriter, r *http.Request) {
	h.mutatePushDestination(w, r, func(client flussonic.API, streamKey, url string) error {
		return client.AddPushDestination(r.Context(), streamKey, url)
	})
}

// RemovePushDestination handles DELETE /api/streams/{id}/push.
func (h *Handler) RemovePushDestination(w http.ResponseWriter, r *http.Request) {
	h.mutatePushDestination(w, r, func(client flussonic.API, streamKey, url string) error {
		return client.RemovePushDestination(r.Context(), streamKey, url)
	})
}

// mutatePushDestination runs the shared validation and lookup path for
// push mutations. Any account with visibility on the stream may manage
// its push targets; without a grant the stream looks missing, same as
// the read path.
func (h *Handler) mutatePushDestination(w http.ResponseWriter, r *http.Request, op func(client flussonic.API, streamKey, url string) error) {
	user, err := h.currentUser(r)
	if err != nil || user == nil {
		respondError(w, http.StatusUnauthorized, codeAuthError, "authentication required", err)
		return
	}

	var req models.PushDestinationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	stream, err := h.db.GetStream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if ok, err := h.userCanSee(r, user, stream.ID); err != nil {
		respondStoreError(w, err)
		return
	} else if !ok {
		respondError(w, http.StatusNotFound, codeNotFound, "stream not found", nil)
		return
	}
	server, err := h.db.GetServer(r.Context(), stream.ServerID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := op(h.clients(server), stream.StreamKey, req.URL); err != nil {
		respondVendorError(w, err)
		return
	}
	respondData(w, http.StatusOK, stream)
}
