// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/*
manager.go - Stream Reconciliation Loop

This file contains the sync manager that keeps the streams table
aligned with what the configured media servers report. Every tick it
polls each server, upserts the streams it sees, bumps miss counters for
the ones it doesn't, records monthly traffic buckets, and hands fresh
snapshots to the WebSocket hub.

Failure isolation: one unreachable server marks only its own row with
the error and never blocks the other servers in the same tick.

Thread safety:
  - syncMu: prevents overlapping tick execution (slow vendors)
  - mu: protects running, lastSync
  - WaitGroup coordinates shutdown with Stop()
*/

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/flussonic"
	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/metrics"
	"github.com/tomtom215/streamwarden/internal/models"
)

// Store is the database surface the reconciliation loop depends on.
// *database.DB implements it; tests may substitute it, though most use
// the real in-memory database.
type Store interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	UpsertStreamObservation(ctx context.Context, serverID, streamKey string, status *models.StreamStatus) error
	MarkMissingStreams(ctx context.Context, serverID string, seenKeys []string, missThreshold int) (int64, error)
	ListServerStreams(ctx context.Context, serverID string) ([]models.Stream, error)
	UpsertMonthlyTraffic(ctx context.Context, streamID string, year, month int, bytesIn, bytesOut int64) error
	RecordServerError(ctx context.Context, id string, vendorErr string) error
	RecordServerSuccess(ctx context.Context, id string) error
}

// Broadcaster receives fresh stream snapshots after each tick.
// Implemented by internal/websocket.Hub; nil disables fan-out.
type Broadcaster interface {
	BroadcastStats(frames []models.StatsFrame)
}

// Manager runs the periodic reconciliation loop.
type Manager struct {
	store    Store
	clients  flussonic.Factory
	cfg      *config.SyncConfig
	hub      Broadcaster
	lastSync time.Time
	running  bool
	mu       sync.RWMutex
	syncMu   sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewManager creates a reconciliation manager.
//
// Parameters:
//   - store: stream/server persistence
//   - clients: vendor client factory, called per server per tick so
//     credential edits take effect on the next tick
//   - cfg: interval and miss threshold
//   - hub: snapshot receiver, may be nil
func NewManager(store Store, clients flussonic.Factory, cfg *config.SyncConfig, hub Broadcaster) *Manager {
	logging.Info().
		Dur("interval", cfg.Interval).
		Int("miss_threshold", cfg.MissThreshold).
		Msg("Sync manager config loaded")

	return &Manager{
		store:    store,
		clients:  clients,
		cfg:      cfg,
		hub:      hub,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the periodic reconciliation loop. The first tick runs
// immediately in the background so the dashboard has data without
// waiting a full interval.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	// Recreated on every start so a supervised restart after Stop gets a
	// fresh stop signal.
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logging.Info().Msg("Starting sync manager...")

	m.wg.Add(1)
	go m.syncLoop(ctx)

	return nil
}

// Stop gracefully stops the loop, waiting for an in-flight tick.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")

	return nil
}

// LastSyncTime returns the completion time of the last successful tick.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// TriggerSync runs one reconciliation pass immediately. Used by the
// first tick and by tests; concurrent callers serialize on syncMu.
func (m *Manager) TriggerSync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	return m.reconcile(ctx)
}

func (m *Manager) syncLoop(ctx context.Context) {
	defer m.wg.Done()

	// Immediate first pass.
	m.tick(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one pass unless the previous one is still in flight. A
// vendor slower than the interval must not stack passes; skipped ticks
// are counted and the next ticker fire tries again.
func (m *Manager) tick(ctx context.Context) {
	if !m.syncMu.TryLock() {
		metrics.SyncTicksSkipped.Inc()
		logging.Warn().Msg("Skipping sync tick: previous tick still running")
		return
	}
	defer m.syncMu.Unlock()

	if err := m.reconcile(ctx); err != nil {
		logging.Error().Err(err).Msg("Sync tick failed")
	}
}

// reconcile performs one full pass over all configured servers.
// Caller must hold syncMu.
func (m *Manager) reconcile(ctx context.Context) error {
	start := m.now()

	servers, err := m.store.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	frames := make([]models.StatsFrame, 0, 64)
	failed := 0
	for i := range servers {
		serverFrames, err := m.reconcileServer(ctx, &servers[i])
		if err != nil {
			failed++
			metrics.SyncServerFailures.WithLabelValues(servers[i].Name).Inc()
			logging.Warn().
				Err(err).
				Str("server", servers[i].Name).
				Str("server_id", servers[i].ID).
				Msg("Server reconciliation failed")
			continue
		}
		frames = append(frames, serverFrames...)
	}

	if m.hub != nil && len(frames) > 0 {
		m.hub.BroadcastStats(frames)
	}

	duration := m.now().Sub(start)
	metrics.SyncTickDuration.Observe(duration.Seconds())
	metrics.SyncStreamsReconciled.Add(float64(len(frames)))
	metrics.SyncLastSuccess.SetToCurrentTime()

	m.mu.Lock()
	m.lastSync = m.now()
	m.mu.Unlock()

	logging.Debug().
		Int("servers", len(servers)).
		Int("failed", failed).
		Int("streams", len(frames)).
		Dur("duration", duration).
		Msg("Sync tick completed")

	return nil
}

// reconcileServer polls one server and reconciles its streams. Any
// error is recorded on the server row and returned; the caller moves on
// to the next server.
func (m *Manager) reconcileServer(ctx context.Context, server *models.Server) ([]models.StatsFrame, error) {
	client := m.clients(server)

	observations, err := client.GetStreams(ctx)
	if err != nil {
		if recordErr := m.store.RecordServerError(ctx, server.ID, err.Error()); recordErr != nil {
			logging.Error().Err(recordErr).Str("server_id", server.ID).Msg("Failed to record server error")
		}
		return nil, err
	}

	seenKeys := make([]string, 0, len(observations))
	for i := range observations {
		obs := &observations[i]
		seenKeys = append(seenKeys, obs.StreamKey)
		if err := m.store.UpsertStreamObservation(ctx, server.ID, obs.StreamKey, &obs.Status); err != nil {
			return nil, fmt.Errorf("failed to upsert stream %s: %w", obs.StreamKey, err)
		}
	}

	if _, err := m.store.MarkMissingStreams(ctx, server.ID, seenKeys, m.cfg.MissThreshold); err != nil {
		return nil, fmt.Errorf("failed to mark missing streams: %w", err)
	}

	streams, err := m.store.ListServerStreams(ctx, server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list server streams: %w", err)
	}

	frames := m.recordTrafficAndFrames(ctx, server, streams)

	if err := m.store.RecordServerSuccess(ctx, server.ID); err != nil {
		logging.Error().Err(err).Str("server_id", server.ID).Msg("Failed to record server success")
	}

	return frames, nil
}

// recordTrafficAndFrames writes this month's traffic bucket for every
// active stream with counters and builds the snapshot frames for
// fan-out. Traffic write failures are logged, not fatal: the next tick
// overwrites the bucket anyway.
func (m *Manager) recordTrafficAndFrames(ctx context.Context, server *models.Server, streams []models.Stream) []models.StatsFrame {
	now := m.now()
	year, month := now.Year(), int(now.Month())

	frames := make([]models.StatsFrame, 0, len(streams))
	for i := range streams {
		stream := &streams[i]
		if !stream.Active {
			continue
		}

		if stream.Status != nil && (stream.Status.BytesIn > 0 || stream.Status.BytesOut > 0) {
			err := m.store.UpsertMonthlyTraffic(ctx, stream.ID, year, month, stream.Status.BytesIn, stream.Status.BytesOut)
			if err != nil {
				logging.Warn().
					Err(err).
					Str("stream_id", stream.ID).
					Msg("Failed to record monthly traffic")
			}
		}

		frames = append(frames, models.StatsFrame{
			StreamID:  stream.ID,
			ServerID:  server.ID,
			StreamKey: stream.StreamKey,
			Data:      stream.Status,
		})
	}
	return frames
}
