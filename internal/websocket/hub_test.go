// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/trawler/internal/event"
)

var testStamp = event.Stamp{
	Name:            "worker",
	Hostname:        "test-host",
	PID:             42,
	SupervisorStart: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
}

func encoded(t *testing.T, entryType event.EntryType, msg string) []byte {
	t.Helper()
	b, err := testStamp.New(testStamp.SupervisorStart.Add(time.Second), entryType, msg, nil).Encode()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v", err)
		}
	})
	return hub
}

func testClient(hub *Hub, types ...event.EntryType) *Client {
	return NewClient(hub, nil, types)
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}, false
	}
}

func decodeEvent(t *testing.T, m Message) *event.LogEvent {
	t.Helper()
	if m.Type != MessageTypeLog {
		t.Fatalf("message type = %q, want %q", m.Type, MessageTypeLog)
	}
	ev, err := event.Parse(m.Data)
	if err != nil {
		t.Fatalf("bad payload %s: %v", m.Data, err)
	}
	return ev
}

func TestHubBroadcastsWithFilter(t *testing.T) {
	hub := startHub(t)
	all := testClient(hub)
	stderrOnly := testClient(hub, event.EntryAppError)
	hub.Register <- all
	hub.Register <- stderrOnly

	_ = hub.Consume(encoded(t, event.EntryAppOutput, "hello"))
	_ = hub.Consume(encoded(t, event.EntryAppError, "boom"))

	if ev := decodeEvent(t, mustReceive(t, all)); ev.Message != "hello" {
		t.Errorf("first message = %q", ev.Message)
	}
	if ev := decodeEvent(t, mustReceive(t, all)); ev.Message != "boom" {
		t.Errorf("second message = %q", ev.Message)
	}
	if ev := decodeEvent(t, mustReceive(t, stderrOnly)); ev.Message != "boom" || ev.EntryType != event.EntryAppError {
		t.Errorf("filtered client got %+v", ev)
	}
}

func mustReceive(t *testing.T, c *Client) Message {
	t.Helper()
	m, ok := receive(t, c)
	if !ok {
		t.Fatal("client channel closed")
	}
	return m
}

func TestHubReplaysHistory(t *testing.T) {
	hub := startHub(t)
	first := testClient(hub)
	hub.Register <- first

	for i := 0; i < HistorySize+5; i++ {
		_ = hub.Consume(encoded(t, event.EntryAppOutput, "line"))
	}
	_ = hub.Consume(encoded(t, event.EntryTrawler, "last"))
	// Drain so first is not dropped as a slow client.
	for i := 0; i < HistorySize+6; i++ {
		mustReceive(t, first)
	}

	late := testClient(hub)
	hub.Register <- late

	var got []string
	for i := 0; i < HistorySize; i++ {
		got = append(got, decodeEvent(t, mustReceive(t, late)).Message)
	}
	if got[len(got)-1] != "last" {
		t.Errorf("last replayed message = %q, want last", got[len(got)-1])
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(hub)
	hub.Register <- slow

	for i := 0; i < sendBuffer+1; i++ {
		_ = hub.Consume(encoded(t, event.EntryAppOutput, "flood"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.GetClientCount() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.GetClientCount() != 0 {
		t.Fatal("slow client was not dropped")
	}
	select {
	case <-slow.gone:
	default:
		t.Error("gone channel not closed")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	c := testClient(hub)
	hub.Register <- c
	cancel()
	<-done

	for range c.send {
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("clients after shutdown = %d", hub.GetClientCount())
	}
}

func TestParseTypes(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "app-output", want: 1},
		{raw: "app-output, app-error,trawler", want: 3},
		{raw: "app-output,stdout", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTypes(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTypes(%q) error = %v", tt.raw, err)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("ParseTypes(%q) = %v", tt.raw, got)
		}
	}
}

func TestServeWS(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	t.Run("rejects unknown types", func(t *testing.T) {
		resp, err := http.Get(server.URL + "?types=bogus")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("streams events and answers pings", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?types=app-output", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && hub.GetClientCount() == 0 {
			time.Sleep(10 * time.Millisecond)
		}

		_ = hub.Consume(encoded(t, event.EntryTrawler, "filtered out"))
		_ = hub.Consume(encoded(t, event.EntryAppOutput, "streamed"))

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if ev := decodeEvent(t, msg); ev.Message != "streamed" {
			t.Errorf("message = %q, want streamed", ev.Message)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
			t.Fatal(err)
		}
		_, data, err = conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MessageTypePong {
			t.Errorf("reply = %s, want pong", data)
		}
	})
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub()
	hub.AllowOrigins("http://localhost:3000/")

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "no origin header", origin: "", want: true},
		{name: "same origin", origin: "http://127.0.0.1:7340", want: true},
		{name: "allowed origin", origin: "http://localhost:3000", want: true},
		{name: "foreign origin", origin: "http://evil.example", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:7340/api/v1/logs/stream", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := hub.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}

	hub.AllowOrigins("*")
	r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:7340/", nil)
	r.Header.Set("Origin", "http://anything.example")
	if !hub.checkOrigin(r) {
		t.Error("expected * to allow any origin")
	}
}
