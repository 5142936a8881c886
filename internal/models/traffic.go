// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package models

import "time"

// MonthlyTrafficStat holds cumulative byte counters for one stream in
// one calendar month. Counters are the vendor's own cumulative readings,
// overwritten on every reconciliation tick rather than summed; a vendor
// counter reset therefore appears as a drop.
type MonthlyTrafficStat struct {
	ID          string    `json:"id" db:"id"`
	StreamID    string    `json:"stream_id" db:"stream_id"`
	Year        int       `json:"year" db:"year"`
	Month       int       `json:"month" db:"month"`
	BytesIn     int64     `json:"bytes_in" db:"bytes_in"`
	BytesOut    int64     `json:"bytes_out" db:"bytes_out"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}
