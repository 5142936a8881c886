// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamwarden/internal/logging"
	"github.com/tomtom215/streamwarden/internal/metrics"
	"github.com/tomtom215/streamwarden/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeStats = "stats"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message represents a WebSocket message. Stats messages carry exactly
// one stream snapshot each, with the stream identity at the top level so
// clients can route frames without inspecting the payload.
type Message struct {
	Type      string      `json:"type"`
	StreamID  string      `json:"streamId,omitempty"`
	ServerID  string      `json:"serverId,omitempty"`
	StreamKey string      `json:"streamKey,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// statsMessage wraps a single snapshot frame as a wire message.
func statsMessage(frame models.StatsFrame) Message {
	return Message{
		Type:      MessageTypeStats,
		StreamID:  frame.StreamID,
		ServerID:  frame.ServerID,
		StreamKey: frame.StreamKey,
		Data:      frame.Data,
	}
}

// Hub maintains the set of active clients and fans stream snapshots out
// to them. Each connected client only ever receives frames for streams
// it is permitted to see; filtering happens here, before anything hits
// a send channel.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []models.StatsFrame
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// lastFrames is the most recent full snapshot, kept so a client
	// connecting between sync ticks gets current state immediately
	// instead of waiting for the next tick.
	lastFrames []models.StatsFrame
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []models.StatsFrame, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub with context support for graceful
// shutdown, designed for use with suture supervision.
//
// DETERMINISM: Uses priority-based selection to ensure predictable
// behavior when multiple channels are ready:
//   - Priority 1: Context cancellation (shutdown)
//   - Priority 2: Client lifecycle events (Register/Unregister)
//   - Priority 3: Snapshot broadcasts
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: Broadcast or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case frames := <-h.broadcast:
			h.broadcastFrames(frames)
		}
	}
}

// registerClient adds the client and immediately sends it a catch-up
// burst of the latest snapshot so the dashboard renders without waiting
// for the next sync tick.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	catchUp := filterFrames(client, h.lastFrames)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().
		Str("username", client.username).
		Bool("is_admin", client.isAdmin).
		Int("total_clients", total).
		Msg("websocket client connected")

	for i := range catchUp {
		select {
		case client.send <- statsMessage(catchUp[i]):
			metrics.WebSocketMessagesSent.Inc()
		default:
			// Freshly registered client with a full channel cannot
			// happen in practice; treat it like any slow client.
			h.dropClient(client)
			return
		}
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// broadcastFrames delivers the snapshot to every connected client as
// one message per visible stream, filtered per client. A client whose
// send buffer fills mid-fan-out gets dropped rather than allowed to
// stall the loop.
//
// DETERMINISM: Clients are sorted by ID so delivery order is stable.
func (h *Hub) broadcastFrames(frames []models.StatsFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastFrames = frames

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		visible := filterFrames(client, frames)

		for i := range visible {
			select {
			case client.send <- statsMessage(visible[i]):
				metrics.WebSocketMessagesSent.Inc()
				continue
			default:
			}
			toRemove = append(toRemove, client)
			break
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketClientsDropped.Inc()
		logging.Warn().Str("username", client.username).Msg("dropping slow websocket client")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
}

// dropClient removes one client outside the broadcast path. Caller must
// not hold h.mu.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebSocketClientsDropped.Inc()
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(float64(total))
}

// filterFrames returns the subset of frames the client may see. Admins
// receive everything; other users only streams in their permitted set,
// captured at connect time.
func filterFrames(client *Client, frames []models.StatsFrame) []models.StatsFrame {
	if client.isAdmin {
		return frames
	}

	visible := make([]models.StatsFrame, 0, len(frames))
	for i := range frames {
		if _, ok := client.permitted[frames[i].StreamID]; ok {
			visible = append(visible, frames[i])
		}
	}
	return visible
}

// BroadcastStats hands a fresh snapshot to the hub. Called by the sync
// manager after every tick; the snapshot always goes out even when
// nothing changed, so clients can treat silence as staleness.
func (h *Hub) BroadcastStats(frames []models.StatsFrame) {
	select {
	case h.broadcast <- frames:
	default:
		logging.Warn().Int("frames", len(frames)).Msg("broadcast channel full, dropping stats snapshot")
	}
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. Context cancellation is expected behavior, so it is not
// logged as an error.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes all connected clients in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(0)
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
