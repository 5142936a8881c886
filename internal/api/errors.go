// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/streamwarden/internal/database"
	"github.com/tomtom215/streamwarden/internal/flussonic"
)

// Error codes returned in the APIError envelope.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeConflict    = "CONFLICT"
	codeLastAdmin   = "LAST_ADMIN"
	codeVendor      = "VENDOR_ERROR"
	codeInternal    = "INTERNAL_ERROR"
	codeBadRequest  = "BAD_REQUEST"
	codeAuthError   = "AUTH_ERROR"
	codeUnavailable = "VENDOR_UNAVAILABLE"
)

// respondStoreError maps database sentinel errors onto the HTTP taxonomy:
// missing rows are 404s, constraint violations are 400s, everything else
// is a 500 with the raw error kept out of the response body.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrServerNotFound),
		errors.Is(err, database.ErrStreamNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrPermissionNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, database.ErrUsernameConflict):
		respondError(w, http.StatusBadRequest, codeConflict, err.Error(), nil)
	case errors.Is(err, database.ErrDuplicateGrant):
		respondError(w, http.StatusBadRequest, codeConflict, err.Error(), nil)
	case errors.Is(err, database.ErrLastAdmin):
		respondError(w, http.StatusBadRequest, codeLastAdmin, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error", err)
	}
}

// respondVendorError maps a vendor call failure on a stream operation.
// A vendor 404 means the stream key does not exist on that server, so it
// surfaces as a 404; credential and protocol problems are 400s; transport
// and server-side failures are 500s.
func respondVendorError(w http.ResponseWriter, err error) {
	switch flussonic.KindOf(err) {
	case flussonic.KindNotFound:
		respondError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case flussonic.KindAuth, flussonic.KindProtocol:
		respondError(w, http.StatusBadRequest, codeVendor, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, codeUnavailable, err.Error(), err)
	}
}
