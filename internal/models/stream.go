// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package models

import "time"

// Stream represents one vendor-reported stream key scoped to a server.
// Rows are created lazily the first time reconciliation observes a key
// and are never deleted automatically; only server-deletion cascades or
// explicit admin action remove them.
type Stream struct {
	ID        string `json:"id" db:"id"`
	ServerID  string `json:"server_id" db:"server_id"`
	StreamKey string `json:"stream_key" db:"stream_key"`

	Active   bool      `json:"active" db:"active"`
	LastSeen time.Time `json:"last_seen" db:"last_seen"`
	// MissCount tracks consecutive reconciliation ticks the stream was
	// absent from the vendor response. Any sighting resets it to zero.
	MissCount int `json:"-" db:"miss_count"`

	Status *StreamStatus `json:"status,omitempty" db:"status_snapshot"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StreamStatus is the normalized vendor snapshot persisted on the stream
// row. All vendor-shape knowledge lives in the flussonic package; the
// rest of the system only ever sees this type.
type StreamStatus struct {
	Alive       bool      `json:"alive"`
	Clients     int       `json:"clients"`
	BitrateKbps int       `json:"bitrate_kbps"`
	BytesIn     int64     `json:"bytes_in"`
	BytesOut    int64     `json:"bytes_out"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// PushDestinationRequest carries the target URL for a push-restream
// mutation. The custom rtmpurl rule enforces an rtmp:// or rtmps:// scheme.
type PushDestinationRequest struct {
	URL string `json:"url" validate:"required,rtmpurl"`
}

// StatsFrame is the WebSocket payload pushed to connected clients, one
// frame per stream.
type StatsFrame struct {
	StreamID  string        `json:"streamId"`
	ServerID  string        `json:"serverId"`
	StreamKey string        `json:"streamKey"`
	Data      *StreamStatus `json:"data"`
}
