// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

func testManager(t *testing.T, timeout time.Duration) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "test-secret-at-least-32-characters!!",
		SessionTimeout: timeout,
	})
	require.NoError(t, err)
	return m
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := testManager(t, time.Hour)

	token, err := m.GenerateToken("user-1", "alice", true)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsAdmin)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := testManager(t, -time.Minute)

	token, err := m.GenerateToken("user-1", "alice", false)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestTamperedTokenRejected(t *testing.T) {
	m := testManager(t, time.Hour)

	token, err := m.GenerateToken("user-1", "alice", false)
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = m.ValidateToken(tampered)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	m1 := testManager(t, time.Hour)
	m2, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "different-secret-also-32-characters!",
		SessionTimeout: time.Hour,
	})
	require.NoError(t, err)

	token, err := m1.GenerateToken("user-1", "alice", false)
	require.NoError(t, err)

	_, err = m2.ValidateToken(token)
	assert.Error(t, err)
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{SessionTimeout: time.Hour})
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}

func TestHashPasswordRejectsOversizedInput(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	assert.Error(t, err)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAcceptsHeaderToken(t *testing.T) {
	m := testManager(t, time.Hour)
	token, err := m.GenerateToken("user-1", "alice", false)
	require.NoError(t, err)

	var gotClaims *Claims
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "alice", gotClaims.Username)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	m := testManager(t, time.Hour)
	token, err := m.GenerateToken("user-1", "alice", false)
	require.NoError(t, err)

	handler := Middleware(m)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	m := testManager(t, time.Hour)
	handler := Middleware(m)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_ERROR")
}

func TestMiddlewareRejectsGarbageToken(t *testing.T) {
	m := testManager(t, time.Hour)
	handler := Middleware(m)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	m := testManager(t, time.Hour)

	run := func(isAdmin bool) *httptest.ResponseRecorder {
		token, err := m.GenerateToken("user-1", "alice", isAdmin)
		require.NoError(t, err)

		handler := Middleware(m)(RequireAdmin(okHandler()))
		req := httptest.NewRequest(http.MethodDelete, "/api/users/u2", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, run(true).Code)

	rec := run(false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}
