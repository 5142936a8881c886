// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package supervisor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/streamwarden/internal/logging"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// countingService records how often the supervisor invoked it.
type countingService struct {
	serves atomic.Int64
	fail   atomic.Bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.serves.Add(1)
	if s.fail.Load() {
		s.fail.Store(false)
		return fmt.Errorf("induced failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree, err := NewTree(logging.NewSlogLogger(), TreeConfig{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 30.0, tree.config.FailureDecay)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
	assert.NotNil(t, tree.Root())
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree, err := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())
	require.NoError(t, err)

	svc := &countingService{}
	svc.fail.Store(true)
	tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	// First Serve fails, the supervisor brings it back.
	require.Eventually(t, func() bool {
		return svc.serves.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after context cancellation")
	}
}

func TestHubServiceStopsWithContext(t *testing.T) {
	tree, err := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())
	require.NoError(t, err)

	hub := ws.NewHub()
	tree.AddMessagingService(NewHubService(hub))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after context cancellation")
	}
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("HTTP service did not shut down")
	}
}
