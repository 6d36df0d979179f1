// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/trawler/internal/config"
)

// WebhookPayload is the JSON body posted by the webhook notifier.
type WebhookPayload struct {
	Event       string    `json:"event"`
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	App         string    `json:"app"`
	Env         string    `json:"env"`
	Version     string    `json:"version"`
	Hostname    string    `json:"hostname"`
	Timestamp   time.Time `json:"timestamp"`
	Restarts    int       `json:"restarts"`
	MaxRestarts int       `json:"maxRestarts"`
	Message     string    `json:"message"`
	Stderr      string    `json:"stderr,omitempty"`
	Error       string    `json:"error,omitempty"`

	// Text is the rendered message body.
	Text string `json:"text"`
}

// Webhook posts notifications as JSON to an arbitrary URL.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

func newWebhookFromConfig(cfg config.NotifierConfig) (Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook notifier: url is required")
	}
	return &Webhook{
		name:    cfg.DisplayName(),
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  httpClient(cfg.Timeout),
	}, nil
}

// Name implements Notifier.
func (w *Webhook) Name() string { return w.name }

// Send implements Notifier.
func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(buildWebhookPayload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return postJSON(ctx, w.client, w.url, body, w.headers)
}

func buildWebhookPayload(n *Notification) WebhookPayload {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := WebhookPayload{
		Event:       "trawler.notification",
		ID:          n.ID,
		Type:        n.Type,
		App:         n.App,
		Env:         n.Env,
		Version:     n.Version,
		Hostname:    n.Hostname,
		Timestamp:   ts.UTC(),
		Restarts:    n.Restarts,
		MaxRestarts: n.MaxRestarts,
		Message:     n.Text(),
		Stderr:      n.Stderr,
		Text:        Render(n),
	}
	if n.Err != nil {
		p.Error = n.Err.Error()
	}
	return p
}
