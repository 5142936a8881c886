// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/streamwarden/internal/models"
)

// UpsertStreamObservation records one vendor sighting of a stream key.
// A single atomic INSERT ... ON CONFLICT keeps concurrent ticks from
// racing a select-then-branch sequence: a new key inserts a fresh row,
// a known key resets the miss counter and overwrites the snapshot.
func (db *DB) UpsertStreamObservation(ctx context.Context, serverID, streamKey string, status *models.StreamStatus) error {
	snapshot, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}

	now := time.Now()
	query := `INSERT INTO streams (
		id, server_id, stream_key, active, last_seen, miss_count,
		status_snapshot, created_at, updated_at
	) VALUES (?, ?, ?, true, ?, 0, ?, ?, ?)
	ON CONFLICT (server_id, stream_key) DO UPDATE SET
		active = true,
		last_seen = excluded.last_seen,
		miss_count = 0,
		status_snapshot = excluded.status_snapshot,
		updated_at = excluded.updated_at`

	_, err = db.exec(ctx, "upsert", "streams", query,
		uuid.New().String(), serverID, streamKey, now, string(snapshot), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stream %s: %w", streamKey, err)
	}

	return nil
}

// MarkMissingStreams increments the miss counter for every stream of
// the server that was absent from the vendor response, flipping rows to
// inactive once the counter reaches missThreshold. Rows are never
// deleted here. Returns the number of rows touched.
func (db *DB) MarkMissingStreams(ctx context.Context, serverID string, seenKeys []string, missThreshold int) (int64, error) {
	query := `UPDATE streams SET
		miss_count = miss_count + 1,
		active = CASE WHEN miss_count + 1 >= ? THEN false ELSE active END,
		updated_at = ?
	WHERE server_id = ?`

	args := []any{missThreshold, time.Now(), serverID}
	if len(seenKeys) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(seenKeys)), ", ")
		query += fmt.Sprintf(" AND stream_key NOT IN (%s)", placeholders)
		for _, key := range seenKeys {
			args = append(args, key)
		}
	}

	result, err := db.exec(ctx, "mark_missing", "streams", query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark missing streams: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// GetStream retrieves a stream by ID.
func (db *DB) GetStream(ctx context.Context, id string) (*models.Stream, error) {
	rows, err := db.query(ctx, "get", "streams", streamSelectColumns+` WHERE s.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query stream: %w", err)
		}
		return nil, ErrStreamNotFound
	}
	return scanStreamRows(rows)
}

// ListStreamsForUser returns all streams visible to the user across all
// servers. Admins see everything; other users only streams they hold a
// permission grant for. The filter is a SQL join so unpermitted streams
// never leave the database layer.
func (db *DB) ListStreamsForUser(ctx context.Context, user *models.User) ([]models.Stream, error) {
	return db.listStreams(ctx, user, "")
}

// ListServerStreamsForUser returns the streams of one server visible to
// the user, with the same join-based filtering.
func (db *DB) ListServerStreamsForUser(ctx context.Context, serverID string, user *models.User) ([]models.Stream, error) {
	return db.listStreams(ctx, user, serverID)
}

func (db *DB) listStreams(ctx context.Context, user *models.User, serverID string) ([]models.Stream, error) {
	query := streamSelectColumns
	args := []any{}

	if !user.IsAdmin {
		query += ` JOIN permissions p ON p.stream_id = s.id AND p.user_id = ?`
		args = append(args, user.ID)
	}
	if serverID != "" {
		query += ` WHERE s.server_id = ?`
		args = append(args, serverID)
	}
	query += ` ORDER BY s.server_id, s.stream_key`

	rows, err := db.query(ctx, "list", "streams", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	return collectStreams(rows)
}

// ListAllStreams returns every stream row, for WebSocket catch-up and
// re-broadcast.
func (db *DB) ListAllStreams(ctx context.Context) ([]models.Stream, error) {
	rows, err := db.query(ctx, "list_all", "streams", streamSelectColumns+` ORDER BY s.server_id, s.stream_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	return collectStreams(rows)
}

// ListServerStreams returns every stream row of one server, unfiltered.
// Used by reconciliation for traffic bookkeeping and snapshot frames.
func (db *DB) ListServerStreams(ctx context.Context, serverID string) ([]models.Stream, error) {
	rows, err := db.query(ctx, "list_server", "streams",
		streamSelectColumns+` WHERE s.server_id = ? ORDER BY s.stream_key`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list server streams: %w", err)
	}
	defer rows.Close()

	return collectStreams(rows)
}

// ListServerStreamKeys returns the stream keys currently persisted for
// a server, for reconciliation diffing.
func (db *DB) ListServerStreamKeys(ctx context.Context, serverID string) ([]string, error) {
	rows, err := db.query(ctx, "list_keys", "streams",
		`SELECT stream_key FROM streams WHERE server_id = ? ORDER BY stream_key`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stream keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan stream key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stream keys: %w", err)
	}
	return keys, nil
}

// DeleteStream removes a stream and its grants and traffic stats.
// Only explicit admin action reaches this; reconciliation never deletes.
func (db *DB) DeleteStream(ctx context.Context, id string) error {
	if _, err := db.GetStream(ctx, id); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cascade := []string{
		`DELETE FROM permissions WHERE stream_id = ?`,
		`DELETE FROM monthly_traffic_stats WHERE stream_id = ?`,
		`DELETE FROM streams WHERE id = ?`,
	}
	for _, query := range cascade {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete stream %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stream deletion: %w", err)
	}
	return nil
}

const streamSelectColumns = `SELECT
	s.id, s.server_id, s.stream_key, s.active, s.last_seen, s.miss_count,
	s.status_snapshot, s.created_at, s.updated_at
FROM streams s`

// scanStreamRows scans the current row into a Stream struct.
func scanStreamRows(rows *sql.Rows) (*models.Stream, error) {
	var stream models.Stream
	var snapshot any // DuckDB returns JSON as map[string]any

	err := rows.Scan(
		&stream.ID, &stream.ServerID, &stream.StreamKey, &stream.Active,
		&stream.LastSeen, &stream.MissCount, &snapshot,
		&stream.CreatedAt, &stream.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to scan stream: %w", err)
	}

	if snapshot != nil {
		var status models.StreamStatus
		if err := json.Unmarshal([]byte(jsonToString(snapshot)), &status); err == nil {
			stream.Status = &status
		}
	}

	return &stream, nil
}

func collectStreams(rows *sql.Rows) ([]models.Stream, error) {
	streams := make([]models.Stream, 0)
	for rows.Next() {
		stream, err := scanStreamRows(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, *stream)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streams: %w", err)
	}
	return streams, nil
}
