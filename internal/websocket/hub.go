// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package websocket

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeLog  = "log"
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

const (
	// HistorySize is the number of recent events replayed to new clients.
	HistorySize = 100

	broadcastBuffer = 1024
)

// Message is the wire envelope.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type logLine struct {
	entryType event.EntryType
	raw       json.RawMessage
}

// Hub fans log events out to live tail clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	log        zerolog.Logger

	// origins is written by AllowOrigins before serving.
	origins map[string]bool

	// history is owned by the hub goroutine.
	history []logLine
}

var _ event.Consumer = (*Hub)(nil)

// NewHub creates a hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        logging.WithComponent("live-tail"),
	}
}

// Consume queues an encoded event line for broadcast. It never blocks.
func (h *Hub) Consume(line []byte) error {
	cp := append([]byte(nil), line...)
	select {
	case h.broadcast <- cp:
	default:
		metrics.TailDropped.Inc()
	}
	return nil
}

// RunWithContext runs the hub until ctx is done, then disconnects every
// client. Shutdown takes priority over client changes, and client changes
// over broadcasts, so a client never misses a line queued after it
// registered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case line := <-h.broadcast:
			h.broadcastLine(line)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	for _, l := range h.history {
		if !client.accepts(l.entryType) {
			continue
		}
		select {
		case client.send <- Message{Type: MessageTypeLog, Data: l.raw}:
		default:
		}
	}

	metrics.TailClients.Set(float64(count))
	h.log.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("live tail client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		h.drop(client)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.TailClients.Set(float64(count))
	h.log.Info().Uint64("client_id", client.id).Int("total_clients", count).Msg("live tail client disconnected")
}

// broadcastLine sends line to every interested client in ID order. Clients
// whose queue is full are dropped.
func (h *Hub) broadcastLine(line []byte) {
	ev, err := event.Parse(line)
	if err != nil {
		h.log.Warn().Err(err).Msg("dropping unparseable event")
		return
	}
	l := logLine{entryType: ev.EntryType, raw: json.RawMessage(bytes.TrimSpace(line))}

	h.history = append(h.history, l)
	if len(h.history) > HistorySize {
		h.history = h.history[len(h.history)-HistorySize:]
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if !client.accepts(l.entryType) {
			continue
		}
		select {
		case client.send <- Message{Type: MessageTypeLog, Data: l.raw}:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		h.drop(client)
		h.log.Warn().Uint64("client_id", client.id).Msg("live tail client too slow, disconnecting")
	}
	if len(toRemove) > 0 {
		metrics.TailClients.Set(float64(len(h.clients)))
	}
}

// drop removes client and closes its channels. mu must be held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	close(client.gone)
}

// sortedClients must be called with mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for _, client := range h.sortedClients() {
		h.drop(client)
	}
	h.mu.Unlock()
	metrics.TailClients.Set(0)

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	h.log.Info().
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("live tail hub stopped")
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
