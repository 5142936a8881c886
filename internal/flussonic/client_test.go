// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package flussonic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

func vendorConfig() *config.VendorConfig {
	return &config.VendorConfig{
		RequestTimeout:    5 * time.Second,
		RequestsPerSecond: 100,
	}
}

func basicServer(url string) *models.Server {
	return &models.Server{
		ID:       "srv-basic",
		Name:     "edge-1",
		URL:      url,
		AuthMode: models.AuthModeBasic,
		Username: "admin",
		Password: "secret",
	}
}

func bearerServer(url string) *models.Server {
	return &models.Server{
		ID:       "srv-bearer",
		Name:     "edge-2",
		URL:      url,
		AuthMode: models.AuthModeBearer,
		APIKey:   "key-123",
	}
}

func TestValidateAuthClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"not found", http.StatusNotFound, KindNotFound},
		{"server error", http.StatusInternalServerError, KindUnavailable},
		{"bad gateway", http.StatusBadGateway, KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
			require.NoError(t, err)

			err = client.ValidateAuth(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
		})
	}
}

func TestValidateAuthSuccessSendsBasicCredentials(t *testing.T) {
	var gotUser, gotPass string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_, _ = w.Write([]byte(`{"streams":[]}`))
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	require.NoError(t, client.ValidateAuth(context.Background()))
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestValidateAuthTransportFailure(t *testing.T) {
	// Closed server: connection refused must classify as unavailable.
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	err = client.ValidateAuth(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestGetStreamsNormalization(t *testing.T) {
	payload := `{"streams":[
		{"name":"cam1","stats":{"alive":true,"clients":4,"bitrate":4500,"bytes_in":1000,"bytes_out":2000}},
		{"name":"cam2","stats":{"alive":true,"client_count":2,"input_bitrate":900}},
		{"name":"cam3"},
		{"name":"","stats":{"alive":true}}
	]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	streams, err := client.GetStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 3, "nameless entries are skipped")

	assert.Equal(t, "cam1", streams[0].StreamKey)
	assert.True(t, streams[0].Status.Alive)
	assert.Equal(t, 4, streams[0].Status.Clients)
	assert.Equal(t, 4500, streams[0].Status.BitrateKbps)
	assert.Equal(t, int64(1000), streams[0].Status.BytesIn)

	// Alternate field names.
	assert.Equal(t, 2, streams[1].Status.Clients)
	assert.Equal(t, 900, streams[1].Status.BitrateKbps)
	assert.Equal(t, int64(0), streams[1].Status.BytesIn)

	// Missing stats block: defensive zero values.
	assert.False(t, streams[2].Status.Alive)
	assert.Equal(t, 0, streams[2].Status.Clients)
}

func TestGetStreamsBareArrayPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"cam1","alive":true,"clients":1,"bitrate":800}]`))
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	streams, err := client.GetStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Status.Alive)
	assert.Equal(t, 800, streams[0].Status.BitrateKbps)
}

func TestGetStreamsMalformedPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	_, err = client.GetStreams(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestBearerTokenExchangeAndCache(t *testing.T) {
	var logins atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamer/api/v3/session" {
			logins.Add(1)
			_, _ = w.Write([]byte(`{"token":"tok-1","expires_in":600}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"streams":[]}`))
	}))
	defer ts.Close()

	client, err := NewClient(bearerServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.GetStreams(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), logins.Load(), "token must be cached across requests")
}

func TestBearerSingleRetryAfter401(t *testing.T) {
	// First token is immediately revoked; the client must refresh and
	// retry exactly once.
	var logins atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamer/api/v3/session" {
			n := logins.Add(1)
			if n == 1 {
				_, _ = w.Write([]byte(`{"token":"stale","expires_in":600}`))
			} else {
				_, _ = w.Write([]byte(`{"token":"fresh","expires_in":600}`))
			}
			return
		}
		if r.Header.Get("Authorization") == "Bearer fresh" {
			_, _ = w.Write([]byte(`{"streams":[]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client, err := NewClient(bearerServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	_, err = client.GetStreams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), logins.Load())
}

func TestBearerRetryGivesUpOnSecond401(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamer/api/v3/session" {
			_, _ = w.Write([]byte(`{"token":"always-stale","expires_in":600}`))
			return
		}
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client, err := NewClient(bearerServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	_, err = client.GetStreams(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, int32(2), requests.Load(), "exactly one retry after 401")
}

func TestTokenCacheExpiry(t *testing.T) {
	cache := NewTokenCache()
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Put("srv", "tok", 5*time.Minute)

	tok, ok := cache.Get("srv")
	require.True(t, ok)
	assert.Equal(t, "tok", tok)

	// Jump past expiry (ttl minus the safety margin).
	current = current.Add(6 * time.Minute)
	_, ok = cache.Get("srv")
	assert.False(t, ok)
}

func TestAddPushDestinationReadModifyWrite(t *testing.T) {
	var putBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"cam1","pushes":["rtmp://old.example.com/live"]}`))
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	require.NoError(t, client.AddPushDestination(context.Background(), "cam1", "rtmp://new.example.com/live"))

	var cfg streamConfig
	require.NoError(t, json.Unmarshal(putBody, &cfg))
	assert.Equal(t, []string{"rtmp://old.example.com/live", "rtmp://new.example.com/live"}, cfg.Pushes)
}

func TestAddPushDestinationIdempotent(t *testing.T) {
	var putBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"cam1","pushes":["rtmp://dest.example.com/live"]}`))
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	require.NoError(t, client.AddPushDestination(context.Background(), "cam1", "rtmp://dest.example.com/live"))

	var cfg streamConfig
	require.NoError(t, json.Unmarshal(putBody, &cfg))
	assert.Equal(t, []string{"rtmp://dest.example.com/live"}, cfg.Pushes)
}

func TestRemovePushDestination(t *testing.T) {
	var putBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"cam1","pushes":["rtmp://a.example.com/x","rtmp://b.example.com/y"]}`))
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	require.NoError(t, client.RemovePushDestination(context.Background(), "cam1", "rtmp://a.example.com/x"))

	var cfg streamConfig
	require.NoError(t, json.Unmarshal(putBody, &cfg))
	assert.Equal(t, []string{"rtmp://b.example.com/y"}, cfg.Pushes)
}

func TestPushOnUnknownStreamIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	err = client.AddPushDestination(context.Background(), "ghost", "rtmp://dest.example.com/live")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStreamKeyIsPathEscaped(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"odd/name","pushes":[]}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client, err := NewClient(basicServer(ts.URL), vendorConfig(), NewTokenCache())
	require.NoError(t, err)

	require.NoError(t, client.AddPushDestination(context.Background(), "odd/name", "rtmp://d.example.com/x"))
	assert.True(t, strings.Contains(gotPath, "odd%2Fname"), "stream key must be path-escaped, got %s", gotPath)
}
