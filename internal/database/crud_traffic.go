// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/streamwarden/internal/models"
)

// UpsertMonthlyTraffic writes the vendor's cumulative byte counters
// into the (stream, year, month) bucket. Existing counters are
// overwritten rather than summed, matching the vendor's own cumulative
// accounting; a counter reset on the vendor side shows as a drop.
func (db *DB) UpsertMonthlyTraffic(ctx context.Context, streamID string, year, month int, bytesIn, bytesOut int64) error {
	now := time.Now()
	query := `INSERT INTO monthly_traffic_stats (
		id, stream_id, year, month, bytes_in, bytes_out, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (stream_id, year, month) DO UPDATE SET
		bytes_in = excluded.bytes_in,
		bytes_out = excluded.bytes_out,
		last_updated = excluded.last_updated`

	_, err := db.exec(ctx, "upsert", "monthly_traffic_stats", query,
		uuid.New().String(), streamID, year, month, bytesIn, bytesOut, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly traffic for stream %s: %w", streamID, err)
	}

	return nil
}

// ListMonthlyTraffic returns up to `months` most recent traffic rows
// for a stream, newest first.
func (db *DB) ListMonthlyTraffic(ctx context.Context, streamID string, months int) ([]models.MonthlyTrafficStat, error) {
	if months <= 0 {
		months = 12
	}

	query := `SELECT id, stream_id, year, month, bytes_in, bytes_out, last_updated
	FROM monthly_traffic_stats
	WHERE stream_id = ?
	ORDER BY year DESC, month DESC
	LIMIT ?`

	rows, err := db.query(ctx, "list", "monthly_traffic_stats", query, streamID, months)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly traffic: %w", err)
	}
	defer rows.Close()

	stats := make([]models.MonthlyTrafficStat, 0)
	for rows.Next() {
		var stat models.MonthlyTrafficStat
		if err := rows.Scan(
			&stat.ID, &stat.StreamID, &stat.Year, &stat.Month,
			&stat.BytesIn, &stat.BytesOut, &stat.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan traffic stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traffic stats: %w", err)
	}

	return stats, nil
}
