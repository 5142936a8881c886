// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package main is the entry point for the Streamwarden server.
//
// Streamwarden is a self-hosted dashboard for Flussonic-compatible
// streaming media servers. It periodically reconciles the stream state
// of every registered server into DuckDB, fans live stats out over
// WebSocket, and exposes a multi-tenant REST API where non-admin
// accounts only see streams they hold an explicit permission for.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layers defaults, optional YAML, and
//     environment variables
//  2. Logging: zerolog, JSON or console format
//  3. Database: DuckDB, embedded, single file
//  4. Admin bootstrap: an initial admin account is created from
//     ADMIN_USERNAME/ADMIN_PASSWORD when the users table is empty
//  5. Supervisor tree: the WebSocket hub, the reconciliation manager,
//     and the HTTP server run as supervised services
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server
// drains in-flight requests (10s timeout), the reconciliation manager
// finishes its current pass, and the database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/streamwarden/internal/api"
	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/database"
	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/models"
	"github.com/tomtom215/streamwarden/internal/supervisor"
	"github.com/tomtom215/streamwarden/internal/sync"
	ws "github.com/tomtom215/streamwarden/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Dur("sync_interval", cfg.Sync.Interval).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	if err := bootstrapAdmin(context.Background(), db, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap admin account")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	// One token cache shared by every vendor client so bearer sessions
	// survive across reconciliation ticks and HTTP requests.
	tokenCache := flussonic.NewTokenCache()
	clients := func(server *models.Server) flussonic.API {
		client, err := flussonic.NewClient(server, &cfg.Vendor, tokenCache)
		if err != nil {
			return flussonic.BrokenClient(err)
		}
		return client
	}

	hub := ws.NewHub()
	syncManager := sync.NewManager(db, clients, &cfg.Sync, hub)

	handler := api.NewHandler(db, clients, syncManager, jwtManager, hub, cfg)
	router := api.NewRouter(handler, jwtManager, cfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      0, // WebSocket connections are long-lived
		IdleTimeout:       cfg.Server.Timeout * 4,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddMessagingService(supervisor.NewHubService(hub))
	tree.AddMessagingService(supervisor.NewSyncService(syncManager))
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, supervisor.DefaultTreeConfig().ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("Streamwarden started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree exited with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Supervisor tree failed")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Streamwarden stopped")
}

// bootstrapAdmin creates the initial admin account when the users table
// is empty. Without it a fresh install has no way to log in.
func bootstrapAdmin(ctx context.Context, db *database.DB, cfg *config.Config) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if cfg.Security.AdminUsername == "" {
		logging.Warn().Msg("Users table is empty and ADMIN_USERNAME is not set; no account can log in")
		return nil
	}

	hash, err := auth.HashPassword(cfg.Security.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Username:     cfg.Security.AdminUsername,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := db.CreateUser(ctx, admin); err != nil {
		return err
	}
	logging.Info().Str("username", cfg.Security.AdminUsername).Msg("Bootstrapped initial admin account")
	return nil
}
