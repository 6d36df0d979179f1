// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/trawler/internal/event"
)

// Type is the notification code shown to recipients.
type Type string

const (
	TypeAppCrash        Type = "app-crash"
	TypeAppNoRestart    Type = "app-no-restart"
	TypeAppRestartLimit Type = "app-restart-limit"
	TypeTrawlerCrash    Type = "trawler-crash"
	TypeTrawlerError    Type = "trawler-error"
)

// LifecycleType converts a lifecycle event type to a notification type.
func LifecycleType(l event.Lifecycle) Type { return Type(l) }

// Lifecycle returns the lifecycle type t represents, if any.
func (t Type) Lifecycle() (event.Lifecycle, bool) {
	l := event.Lifecycle(t)
	return l, l.Valid()
}

// Notification is one message to deliver.
type Notification struct {
	// ID is assigned by the Dispatcher when empty.
	ID   string
	Type Type

	App      string
	Env      string
	Version  string
	Hostname string

	// AppStartedAt is the current child's start time; zero if none.
	AppStartedAt time.Time
	Time         time.Time

	// Restarts is the crash count. MaxRestarts is 0 when unlimited.
	Restarts    int
	MaxRestarts int

	// Stderr is the recent stderr excerpt attached to crash notifications.
	Stderr string

	// Message replaces the default message for the type.
	Message string
	Err     error
}

// Subject returns a one-line summary for channels with a subject field.
func (n *Notification) Subject() string {
	return fmt.Sprintf("[Trawler] %s (%s): %s", n.App, strings.ToLower(n.Env), n.Type)
}

// Status formats the restart count, e.g. "2/3" or "2" when unlimited.
func (n *Notification) Status() string {
	if n.MaxRestarts > 0 {
		return fmt.Sprintf("%d/%d", n.Restarts, n.MaxRestarts)
	}
	return fmt.Sprintf("%d", n.Restarts)
}

// Text returns the message line for the notification type.
func (n *Notification) Text() string {
	if n.Message != "" {
		return n.Message
	}
	switch n.Type {
	case TypeAppNoRestart:
		return `The app is not allowed to crash because "crash.auto_restart" is not enabled.`
	case TypeAppRestartLimit:
		return fmt.Sprintf("The app has crashed too many times and cannot be restarted again (max %d restart(s) allowed).", n.MaxRestarts)
	case TypeAppCrash:
		return fmt.Sprintf("The app has crashed *%d time(s)*!", n.Restarts)
	case TypeTrawlerCrash:
		return "Trawler itself has crashed!"
	case TypeTrawlerError:
		return "Trawler has encountered an error."
	case Type(event.AppStart):
		return "The app has started."
	case Type(event.AppRestartManual):
		return "The app was restarted manually."
	case Type(event.AppRestartSourceChange):
		return "The app was restarted after a source change."
	case Type(event.AppRestartCrash):
		return "The app was restarted after a crash."
	}
	return "Something unexpected happened, it's probably worth checking out the application to make sure it's still running."
}

// trace returns the text shown in the code block, if any.
func (n *Notification) trace() string {
	switch n.Type {
	case TypeAppCrash, TypeAppRestartLimit, TypeAppNoRestart:
		return strings.TrimRight(n.Stderr, "\n")
	case TypeTrawlerCrash, TypeTrawlerError:
		if n.Err != nil {
			return n.Err.Error()
		}
	}
	return ""
}

// Render produces the standard message body shared by every provider.
func Render(n *Notification) string {
	now := n.Time
	if now.IsZero() {
		now = time.Now()
	}

	boot := "`n/a`"
	if !n.AppStartedAt.IsZero() {
		start := n.AppStartedAt.UTC()
		boot = fmt.Sprintf("`%s` `%s UTC` `(uptime %d ms)`",
			start.Format("2006-01-02"), start.Format("15:04:05.000"), now.Sub(n.AppStartedAt).Milliseconds())
	}

	var b strings.Builder
	b.WriteString(" \n")
	fmt.Fprintf(&b, "*Application: `%s`*\n", n.App)
	fmt.Fprintf(&b, "Mode: `%s`\n", strings.ToLower(n.Env))
	fmt.Fprintf(&b, "Version: `v%s`\n", n.Version)
	fmt.Fprintf(&b, "Host: `%s`\n", n.Hostname)
	fmt.Fprintf(&b, "Boot Time: %s\n", boot)
	fmt.Fprintf(&b, "Code: `%s`\n", n.Type)
	fmt.Fprintf(&b, "Status: `%s` restart(s).\n", n.Status())
	b.WriteString(" \n")
	b.WriteString(n.Text())
	b.WriteString("\n \n")
	if trace := n.trace(); trace != "" {
		b.WriteString("```" + trace + "```\n")
	}
	return b.String()
}
