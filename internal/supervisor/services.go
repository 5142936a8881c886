// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/* services.go - Suture Service Wrappers

Adapters that give the hub, the reconciliation manager, and the HTTP
server the suture.Service shape. Each Serve blocks until the context is
canceled; returning an error hands control to the supervisor's restart
policy.
*/

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/streamwarden/internal/logging"
	sync "github.com/tomtom215/streamwarden/internal/sync"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

// HubService runs the WebSocket hub under supervision.
type HubService struct {
	hub *ws.Hub
}

// NewHubService wraps a hub as a suture service.
func NewHubService(hub *ws.Hub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	logging.Info().Msg("Starting WebSocket hub service")
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string { return "websocket-hub" }

// SyncService runs the reconciliation manager under supervision.
type SyncService struct {
	manager *sync.Manager
}

// NewSyncService wraps a reconciliation manager as a suture service.
func NewSyncService(manager *sync.Manager) *SyncService {
	return &SyncService{manager: manager}
}

// Serve implements suture.Service. The manager owns its own goroutine;
// Serve blocks on the context and stops the manager on the way out so a
// supervisor restart always begins from a clean state.
func (s *SyncService) Serve(ctx context.Context) error {
	logging.Info().Msg("Starting reconciliation service")
	if err := s.manager.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := s.manager.Stop(); err != nil {
		logging.Error().Err(err).Msg("Reconciliation manager stop failed")
	}
	return ctx.Err()
}

func (s *SyncService) String() string { return "sync-manager" }

// HTTPService runs the HTTP server under supervision with graceful
// shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an http.Server as a suture service.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }
