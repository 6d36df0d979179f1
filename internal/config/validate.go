// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/trawler/internal/validation"
)

// ErrSelfSupervision is returned when the configured app is the supervisor itself.
var ErrSelfSupervision = errors.New("trawler cannot supervise itself")

// Validate checks struct rules first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if strings.EqualFold(c.App.Name, "trawler") {
		return ErrSelfSupervision
	}
	if c.Source.BinaryPollInterval < c.Source.PollInterval {
		return fmt.Errorf("source.binary_poll_interval (%s) must not be shorter than source.poll_interval (%s)",
			c.Source.BinaryPollInterval, c.Source.PollInterval)
	}
	for i, n := range c.Notifiers {
		if err := n.validate(); err != nil {
			return fmt.Errorf("notifiers[%d] (%s): %w", i, n.DisplayName(), err)
		}
	}
	return nil
}

func (n NotifierConfig) validate() error {
	switch n.Type {
	case "slack":
		if n.WebhookURL == "" {
			return errors.New("webhook_url is required")
		}
	case "email":
		if n.SMTPHost == "" || n.SMTPPort == 0 {
			return errors.New("smtp_host and smtp_port are required")
		}
		if n.From == "" || len(n.To) == 0 {
			return errors.New("from and to are required")
		}
	case "webhook":
		if n.URL == "" {
			return errors.New("url is required")
		}
	}
	// Unknown types are rejected when notifiers are constructed.
	return nil
}
