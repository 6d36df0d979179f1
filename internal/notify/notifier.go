// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/trawler/internal/config"
)

// DefaultTimeout bounds a single delivery when the notifier sets none.
const DefaultTimeout = 10 * time.Second

// ErrUnknownType is returned for a notifier declaration whose type has no
// registered implementation.
var ErrUnknownType = errors.New("unknown notifier type")

// Notifier delivers notifications to one external service.
type Notifier interface {
	// Name identifies the notifier in logs and metrics.
	Name() string

	Send(ctx context.Context, n *Notification) error
}

// Factory builds a notifier from its declaration.
type Factory func(cfg config.NotifierConfig) (Notifier, error)

var registry = map[string]Factory{
	"slack":   newSlackFromConfig,
	"email":   newEmailFromConfig,
	"webhook": newWebhookFromConfig,
}

// New builds the notifier named by cfg.Type.
func New(cfg config.NotifierConfig) (Notifier, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	return factory(cfg)
}

// Types returns the registered notifier types, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body and treats any 2xx status as success.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Trawler/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		respBody = []byte("(failed to read response)")
	}
	return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
}
