// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/tomtom215/trawler/internal/config"
)

// Email sends notifications over SMTP.
type Email struct {
	name     string
	host     string
	port     int
	user     string
	password string
	useTLS   bool
	from     string
	fromName string
	to       []string
	timeout  time.Duration
}

func newEmailFromConfig(cfg config.NotifierConfig) (Notifier, error) {
	if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
		return nil, errors.New("email notifier: smtp_host and smtp_port are required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("email notifier: from and to are required")
	}
	e := &Email{
		name:     cfg.DisplayName(),
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		useTLS:   cfg.UseTLS,
		from:     cfg.From,
		fromName: cfg.FromName,
		to:       cfg.To,
		timeout:  cfg.Timeout,
	}
	if e.fromName == "" {
		e.fromName = "Trawler"
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e, nil
}

// Name implements Notifier.
func (e *Email) Name() string { return e.name }

// Send implements Notifier.
func (e *Email) Send(ctx context.Context, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.sendSMTP(ctx, e.buildMessage(n))
}

func (e *Email) buildMessage(n *Notification) string {
	var msg strings.Builder

	fmt.Fprintf(&msg, "From: %s <%s>\r\n", e.fromName, e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Subject())
	msg.WriteString("MIME-Version: 1.0\r\n")
	if n.ID != "" {
		fmt.Fprintf(&msg, "X-Trawler-Notification-ID: %s\r\n", n.ID)
	}
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(Render(n), "\n", "\r\n"))

	return msg.String()
}

func (e *Email) sendSMTP(ctx context.Context, msg string) error {
	addr := net.JoinHostPort(e.host, fmt.Sprintf("%d", e.port))

	dialer := &net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if e.useTLS {
		tlsConfig := &tls.Config{
			ServerName: e.host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if e.user != "" && e.password != "" {
		auth := smtp.PlainAuth("", e.user, e.password, e.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range e.to {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once DATA closes.
	_ = client.Quit()
	return nil
}
