// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/models"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

func dialWebSocket(t *testing.T, server *httptest.Server, token string) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	header := http.Header{"Origin": []string{"http://dashboard.example.com"}}
	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// wireStatsMessage mirrors the per-stream frame clients receive.
type wireStatsMessage struct {
	Type      string               `json:"type"`
	StreamID  string               `json:"streamId"`
	ServerID  string               `json:"serverId"`
	StreamKey string               `json:"streamKey"`
	Data      *models.StreamStatus `json:"data"`
}

func readStatsMessage(t *testing.T, conn *gws.Conn) wireStatsMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wireStatsMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	require.Equal(t, ws.MessageTypeStats, msg.Type)
	return msg
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	server := env.createServer(t, "edge-1")
	stream := env.createStream(t, server.ID, "news")

	conn := dialWebSocket(t, ts, env.adminToken)

	frame := models.StatsFrame{
		StreamID:  stream.ID,
		ServerID:  server.ID,
		StreamKey: "news",
		Data:      &models.StreamStatus{Alive: true, Clients: 7},
	}
	require.Eventually(t, func() bool {
		return env.hub.GetClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	env.hub.BroadcastStats([]models.StatsFrame{frame})

	msg := readStatsMessage(t, conn)
	assert.Equal(t, stream.ID, msg.StreamID)
	assert.Equal(t, "news", msg.StreamKey)
	assert.Equal(t, 7, msg.Data.Clients)
}

func TestWebSocketFiltersByPermission(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	server := env.createServer(t, "edge-1")
	news := env.createStream(t, server.ID, "news")
	sport := env.createStream(t, server.ID, "sport")
	env.grant(t, env.viewer.ID, news.ID)

	conn := dialWebSocket(t, ts, env.viewerToken)
	require.Eventually(t, func() bool {
		return env.hub.GetClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.hub.BroadcastStats([]models.StatsFrame{
		{StreamID: news.ID, ServerID: server.ID, StreamKey: "news", Data: &models.StreamStatus{Alive: true}},
		{StreamID: sport.ID, ServerID: server.ID, StreamKey: "sport", Data: &models.StreamStatus{Alive: true}},
	})

	msg := readStatsMessage(t, conn)
	assert.Equal(t, news.ID, msg.StreamID)
	assert.Equal(t, "news", msg.StreamKey)

	// The sport frame must never arrive on this connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestWebSocketCatchUpBurst(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	server := env.createServer(t, "edge-1")
	stream := env.createStream(t, server.ID, "news")

	// Seed the hub cache before anyone connects. The broadcast is
	// processed asynchronously, so poll until a fresh connection sees
	// the catch-up burst.
	env.hub.BroadcastStats([]models.StatsFrame{
		{StreamID: stream.ID, ServerID: server.ID, StreamKey: "news", Data: &models.StreamStatus{Alive: true}},
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + env.adminToken
	header := http.Header{"Origin": []string{"http://dashboard.example.com"}}
	require.Eventually(t, func() bool {
		conn, resp, err := gws.DefaultDialer.Dial(url, header)
		if err != nil {
			return false
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		defer conn.Close()

		if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return false
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var msg wireStatsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return false
		}
		return msg.Type == ws.MessageTypeStats && msg.StreamID == stream.ID && msg.StreamKey == "news"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://dashboard.example.com"}}
	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
