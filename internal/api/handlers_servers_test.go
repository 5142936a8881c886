// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/models"
)

func validCreateServerBody() map[string]interface{} {
	return map[string]interface{}{
		"name":      "edge-1",
		"url":       "https://edge-1.example.com",
		"auth_mode": "basic",
		"username":  "ops",
		"password":  "secret",
	}
}

func TestCreateServerPersistsAfterSuccessfulProbe(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/servers", env.adminToken, validCreateServerBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var server models.Server
	decodeData(t, resp, &server)
	assert.NotEmpty(t, server.ID)
	assert.Equal(t, models.ServerStatusOnline, server.Status)
	assert.Equal(t, 1, env.vendor.validateCalls)

	stored, err := env.db.GetServer(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Equal(t, "edge-1", stored.Name)
	assert.NotNil(t, stored.LastSuccessfulAuthAt)
}

// The registration probe must run against a client already keyed to the
// new server's ID. An empty ID would share one token-cache slot and one
// circuit breaker across every registration.
func TestCreateServerProbeCarriesServerID(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/servers", env.adminToken, validCreateServerBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var server models.Server
	decodeData(t, resp, &server)

	require.Len(t, env.vendor.serverIDs, 1)
	assert.NotEmpty(t, env.vendor.serverIDs[0])
	assert.Equal(t, server.ID, env.vendor.serverIDs[0], "probe client and persisted row must share the same ID")

	body := validCreateServerBody()
	body["name"] = "edge-2"
	rec, resp = env.do(t, http.MethodPost, "/api/servers", env.adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeData(t, resp, &server)

	require.Len(t, env.vendor.serverIDs, 2)
	assert.NotEqual(t, env.vendor.serverIDs[0], env.vendor.serverIDs[1], "each registration gets its own client identity")
}

func TestCreateServerRejectedProbeWritesNoRow(t *testing.T) {
	env := newTestEnv(t)
	env.vendor.validateErr = &flussonic.VendorError{
		Op: "validate_auth", Kind: flussonic.KindAuth, StatusCode: 401, Message: "credentials rejected",
	}

	rec, resp := env.do(t, http.MethodPost, "/api/servers", env.adminToken, validCreateServerBody())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeVendor, resp.Error.Code)

	servers, err := env.db.ListServers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestCreateServerValidationFailureSkipsProbe(t *testing.T) {
	env := newTestEnv(t)

	body := validCreateServerBody()
	body["url"] = "not a url"
	rec, resp := env.do(t, http.MethodPost, "/api/servers", env.adminToken, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeValidation, resp.Error.Code)
	assert.Zero(t, env.vendor.validateCalls)
}

func TestCreateServerRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/servers", env.viewerToken, validCreateServerBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/servers", "", validCreateServerBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteServerReturnsRemovedRow(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer(t, "edge-1")

	rec, resp := env.do(t, http.MethodDelete, "/api/servers/"+server.ID, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var removed models.Server
	decodeData(t, resp, &removed)
	assert.Equal(t, server.ID, removed.ID)

	rec, _ = env.do(t, http.MethodGet, "/api/servers/"+server.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUnknownServerIs404(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodDelete, "/api/servers/no-such-id", env.adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestTestServerRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer(t, "edge-1")
	env.vendor.validateErr = &flussonic.VendorError{
		Op: "validate_auth", Kind: flussonic.KindUnavailable, StatusCode: 503, Message: "upstream down",
	}

	rec, resp := env.do(t, http.MethodPost, "/api/servers/"+server.ID+"/test", env.adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeVendor, resp.Error.Code)

	var result models.ServerTestResponse
	decodeData(t, resp, &result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "upstream down")
	require.NotNil(t, result.Server)
	assert.Equal(t, models.ServerStatusOffline, result.Server.Status)
	assert.NotEmpty(t, result.Server.LastError)

	stored, err := env.db.GetServer(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServerStatusOffline, stored.Status)
}

func TestTestServerRecordsSuccess(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer(t, "edge-1")

	rec, resp := env.do(t, http.MethodPost, "/api/servers/"+server.ID+"/test", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ServerTestResponse
	decodeData(t, resp, &result)
	assert.True(t, result.Success)
	require.NotNil(t, result.Server)
	assert.Equal(t, models.ServerStatusOnline, result.Server.Status)
}

func TestListServersVisibleToViewer(t *testing.T) {
	env := newTestEnv(t)
	env.createServer(t, "edge-1")
	env.createServer(t, "edge-2")

	rec, resp := env.do(t, http.MethodGet, "/api/servers", env.viewerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var servers []models.Server
	decodeData(t, resp, &servers)
	assert.Len(t, servers, 2)
}

func TestTriggerSyncIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/sync", env.viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/sync", env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.syncMgr.triggers)
}
