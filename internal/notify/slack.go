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
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/trawler/internal/config"
)

// Slack defaults.
const (
	DefaultSlackUsername  = "Trawler"
	DefaultSlackIconEmoji = ":anchor:"
)

// SlackPayload is the incoming-webhook message body.
type SlackPayload struct {
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`
	Text      string `json:"text"`
}

// Slack posts notifications to a Slack incoming webhook.
type Slack struct {
	name       string
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	iconURL    string
	attention  []string
	client     *http.Client
}

func newSlackFromConfig(cfg config.NotifierConfig) (Notifier, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("slack notifier: webhook_url is required")
	}
	s := &Slack{
		name:       cfg.DisplayName(),
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   cfg.Username,
		iconEmoji:  cfg.IconEmoji,
		iconURL:    cfg.IconURL,
		attention:  mentions(cfg.Attention),
		client:     httpClient(cfg.Timeout),
	}
	if s.username == "" {
		s.username = DefaultSlackUsername
	}
	if s.iconEmoji == "" && s.iconURL == "" {
		s.iconEmoji = DefaultSlackIconEmoji
	}
	return s, nil
}

// Name implements Notifier.
func (s *Slack) Name() string { return s.name }

// Send implements Notifier.
func (s *Slack) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(s.payload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return postJSON(ctx, s.client, s.webhookURL, body, nil)
}

func (s *Slack) payload(n *Notification) SlackPayload {
	text := Render(n)
	if len(s.attention) > 0 {
		text += "\n" + strings.Join(s.attention, ", ") + "\n"
	}
	return SlackPayload{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		IconURL:   s.iconURL,
		Text:      text,
	}
}

// mentions prefixes every username with "@".
func mentions(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		out = append(out, name)
	}
	return out
}
