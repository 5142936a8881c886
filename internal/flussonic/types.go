// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/*
types.go - Flussonic Wire Format Normalization

Flussonic builds have drifted the streams payload over the years: client
counts appear under "clients" or "stats.clients", bitrate under
"bitrate" or "input.bitrate", and some deployments omit the stats block
entirely for idle streams. Everything funnels through StreamObservation
so the rest of the codebase never sees the wire format.
*/

package flussonic

import (
	"time"

	"github.com/tomtom215/streamwarden/internal/models"
)

// StreamObservation is a single normalized stream reading from one
// vendor poll. StreamKey is the vendor-side stream name; Status always
// carries defensive defaults for fields the payload omitted.
type StreamObservation struct {
	StreamKey string
	Status    models.StreamStatus
}

// streamsEnvelope is the modern payload shape: {"streams": [...]}.
// Older builds return a bare array; decodeStreams handles both.
type streamsEnvelope struct {
	Streams []wireStream `json:"streams"`
}

// wireStream mirrors one entry of the vendor streams payload across
// the field-name variants we have seen in the wild.
type wireStream struct {
	Name     string     `json:"name"`
	Position string     `json:"position,omitempty"`
	Stats    *wireStats `json:"stats,omitempty"`

	// Flat variants used by older builds that have no stats block.
	Alive    *bool  `json:"alive,omitempty"`
	Clients  *int   `json:"clients,omitempty"`
	Bitrate  *int   `json:"bitrate,omitempty"`
	BytesIn  *int64 `json:"bytes_in,omitempty"`
	BytesOut *int64 `json:"bytes_out,omitempty"`
}

type wireStats struct {
	Alive        *bool  `json:"alive,omitempty"`
	Clients      *int   `json:"clients,omitempty"`
	ClientCount  *int   `json:"client_count,omitempty"`
	Bitrate      *int   `json:"bitrate,omitempty"`
	InputBitrate *int   `json:"input_bitrate,omitempty"`
	BytesIn      *int64 `json:"bytes_in,omitempty"`
	BytesOut     *int64 `json:"bytes_out,omitempty"`
}

// normalize maps a wire entry onto the internal status type. Missing
// fields default to zero values and alive=false; a stream we cannot
// interpret is still recorded, just with empty stats.
func (w *wireStream) normalize(now time.Time) StreamObservation {
	status := models.StreamStatus{RetrievedAt: now}

	if w.Stats != nil {
		status.Alive = boolOr(w.Stats.Alive, false)
		status.Clients = intOr(w.Stats.Clients, intOr(w.Stats.ClientCount, 0))
		status.BitrateKbps = intOr(w.Stats.Bitrate, intOr(w.Stats.InputBitrate, 0))
		status.BytesIn = int64Or(w.Stats.BytesIn, 0)
		status.BytesOut = int64Or(w.Stats.BytesOut, 0)
	} else {
		status.Alive = boolOr(w.Alive, false)
		status.Clients = intOr(w.Clients, 0)
		status.BitrateKbps = intOr(w.Bitrate, 0)
		status.BytesIn = int64Or(w.BytesIn, 0)
		status.BytesOut = int64Or(w.BytesOut, 0)
	}

	// Counters never go negative; a vendor restart can briefly report
	// garbage here.
	if status.Clients < 0 {
		status.Clients = 0
	}
	if status.BitrateKbps < 0 {
		status.BitrateKbps = 0
	}
	if status.BytesIn < 0 {
		status.BytesIn = 0
	}
	if status.BytesOut < 0 {
		status.BytesOut = 0
	}

	return StreamObservation{StreamKey: w.Name, Status: status}
}

// streamConfig is the subset of a stream's configuration we touch when
// managing push destinations.
type streamConfig struct {
	Name   string   `json:"name"`
	Pushes []string `json:"pushes"`
}

// sessionResponse is the token-exchange payload for bearer-mode servers.
type sessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func int64Or(v *int64, def int64) int64 {
	if v != nil {
		return *v
	}
	return def
}
