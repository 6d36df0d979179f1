// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package websocket

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/trawler/internal/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

var clientIDCounter atomic.Uint64

// Client is one live tail connection.
type Client struct {
	id    uint64
	hub   *Hub
	conn  *websocket.Conn
	send  chan Message
	types map[event.EntryType]bool

	// gone is closed when the hub has dropped the client.
	gone chan struct{}
}

// NewClient creates a client that receives the given entry types, or all
// of them when types is empty.
func NewClient(hub *Hub, conn *websocket.Conn, types []event.EntryType) *Client {
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
		gone: make(chan struct{}),
	}
	if len(types) > 0 {
		c.types = make(map[event.EntryType]bool, len(types))
		for _, t := range types {
			c.types[t] = true
		}
	}
	return c
}

// ID returns the client's identifier.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) accepts(t event.EntryType) bool {
	return c.types == nil || c.types[t]
}

// ParseTypes parses a comma-separated entry type filter.
func ParseTypes(raw string) ([]event.EntryType, error) {
	if raw == "" {
		return nil, nil
	}
	var out []event.EntryType
	for _, part := range strings.Split(raw, ",") {
		t := event.EntryType(strings.TrimSpace(part))
		switch t {
		case event.EntryAppOutput, event.EntryAppError, event.EntryTrawler:
			out = append(out, t)
		default:
			return nil, fmt.Errorf("unknown entry type %q", part)
		}
	}
	return out, nil
}

// AllowOrigins permits cross-origin live tail clients from the given
// origins ("*" allows any). Same-origin and non-browser clients are always
// accepted. Call it before serving.
func (h *Hub) AllowOrigins(origins ...string) {
	h.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		h.origins[strings.TrimRight(o, "/")] = true
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return h.origins["*"] || h.origins[origin]
}

// ServeWS upgrades the request and registers a live tail client.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	types, err := ParseTypes(r.URL.Query().Get("types"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     hub.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(hub, conn, types)
	select {
	case hub.Register <- client:
	case <-time.After(writeWait):
		hub.log.Warn().Msg("live tail hub not running, rejecting client")
		_ = conn.Close()
		return
	}
	client.Start()
}

// Start runs the client's pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.gone:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			b, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error().Err(err).Msg("failed to encode live tail message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
