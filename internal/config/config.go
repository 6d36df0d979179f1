// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package config

import "time"

// Config is the fully resolved supervisor configuration. It is treated as
// immutable once Load returns.
type Config struct {
	App       AppConfig        `koanf:"app"`
	Crash     CrashConfig      `koanf:"crash"`
	Source    SourceConfig     `koanf:"source"`
	Console   ConsoleConfig    `koanf:"console"`
	Sinks     []SinkConfig     `koanf:"sinks" validate:"dive"`
	Notifiers []NotifierConfig `koanf:"notifiers" validate:"dive"`
	Control   ControlConfig    `koanf:"control"`
	Logging   LoggingConfig    `koanf:"logging"`
}

// AppConfig identifies the supervised worker.
type AppConfig struct {
	Name    string `koanf:"name" validate:"required"`
	Version string `koanf:"version"`

	// Command is the executable; Args are passed to it unchanged.
	Command string   `koanf:"command" validate:"required"`
	Args    []string `koanf:"args"`
	Dir     string   `koanf:"dir"`

	// Env is the deployment environment used for sink/notifier filtering.
	Env string `koanf:"env" validate:"required"`

	// EnvOverridden is set when Env came from the command line; the child
	// is then started with "--env <Env>" appended to its arguments.
	EnvOverridden bool `koanf:"-"`

	// Environment holds extra variables for the child process.
	Environment map[string]string `koanf:"environment"`
}

// CrashConfig is the crash restart policy.
type CrashConfig struct {
	AutoRestart         bool `koanf:"auto_restart"`
	MaxRestarts         int  `koanf:"max_restarts" validate:"gte=0"`
	WaitForSourceChange bool `koanf:"wait_for_source_change"`

	// RestartDelay is applied before a crash-triggered restart.
	RestartDelay time.Duration `koanf:"restart_delay" validate:"gte=0"`

	// StopTimeout bounds how long an interrupted child may take to exit
	// before it is killed.
	StopTimeout time.Duration `koanf:"stop_timeout" validate:"gt=0"`

	// QuitDelay is the pause before exiting on a policy quit.
	QuitDelay time.Duration `koanf:"quit_delay" validate:"gte=0"`

	// NotifyTimeout bounds notification dispatch before exit.
	NotifyTimeout time.Duration `koanf:"notify_timeout" validate:"gt=0"`
}

// SourceConfig controls restart on source change.
type SourceConfig struct {
	AutoRestart        bool          `koanf:"auto_restart"`
	Debounce           time.Duration `koanf:"debounce" validate:"gt=0"`
	UsePolling         bool          `koanf:"use_polling"`
	PollInterval       time.Duration `koanf:"poll_interval" validate:"gt=0"`
	BinaryPollInterval time.Duration `koanf:"binary_poll_interval" validate:"gt=0"`

	// Ignore entries are literal paths, doublestar globs, or "re:" regexps.
	Ignore []string `koanf:"ignore"`

	// Roots are extra directories to watch besides App.Dir.
	Roots []string `koanf:"roots"`
}

// ConsoleConfig echoes child output to the supervisor's own stdout.
type ConsoleConfig struct {
	Stdout bool `koanf:"stdout"`
	Stderr bool `koanf:"stderr"`
}

// Filter is the environment include/exclude pair shared by sinks and notifiers.
type Filter struct {
	Environments        []string `koanf:"environments"`
	ExcludeEnvironments []string `koanf:"exclude_environments"`
}

// Allows reports whether the declaration is active in env.
func (f Filter) Allows(env string) bool {
	if len(f.Environments) > 0 && !contains(f.Environments, env) {
		return false
	}
	return !contains(f.ExcludeEnvironments, env)
}

// SinkConfig declares one sink. Fields beyond Type are read by the sink
// implementation named by Type.
type SinkConfig struct {
	Type   string `koanf:"type" validate:"required"`
	Filter `koanf:",squash"`

	// File sink
	Location     string `koanf:"location"`
	LogName      string `koanf:"log_name"`
	RotateLogs   *bool  `koanf:"rotate_logs"`
	MaxBackLogs  int    `koanf:"max_back_logs" validate:"gte=0"`
	CrashOnError *bool  `koanf:"crash_on_error"`
}

// NotifierConfig declares one notifier.
type NotifierConfig struct {
	Type   string `koanf:"type" validate:"required"`
	Name   string `koanf:"name"`
	Filter `koanf:",squash"`

	// Events lists lifecycle types forwarded to this notifier in addition
	// to crash notifications.
	Events []string `koanf:"events" validate:"dive,oneof=app-start app-restart-manual app-restart-source-change app-restart-crash"`

	// RatePerMinute throttles deliveries. 0 uses the default.
	RatePerMinute int `koanf:"rate_per_minute" validate:"gte=0"`

	// Timeout bounds a single delivery.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// Slack
	WebhookURL string   `koanf:"webhook_url" validate:"omitempty,http_url"`
	Channel    string   `koanf:"channel"`
	Username   string   `koanf:"username"`
	IconEmoji  string   `koanf:"icon_emoji"`
	IconURL    string   `koanf:"icon_url"`
	Attention  []string `koanf:"attention"`

	// Email
	SMTPHost     string   `koanf:"smtp_host"`
	SMTPPort     int      `koanf:"smtp_port" validate:"gte=0,lte=65535"`
	SMTPUser     string   `koanf:"smtp_user"`
	SMTPPassword string   `koanf:"smtp_password"`
	UseTLS       bool     `koanf:"use_tls"`
	From         string   `koanf:"from" validate:"omitempty,email"`
	FromName     string   `koanf:"from_name"`
	To           []string `koanf:"to" validate:"dive,email"`

	// Webhook
	URL     string            `koanf:"url" validate:"omitempty,http_url"`
	Headers map[string]string `koanf:"headers"`
}

// DisplayName returns Name, or Type when Name is empty.
func (n NotifierConfig) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Type
}

// ControlConfig configures the optional HTTP control API.
type ControlConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address" validate:"hostname_port"`

	// CORSOrigins lists browser origins allowed to call the API and open
	// the live tail. Empty means same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`

	// CommandsPerMinute caps restart and stop requests; negative disables.
	CommandsPerMinute int `koanf:"commands_per_minute"`
}

// LoggingConfig configures the supervisor's own log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// FilterSinks returns the sinks active in env, preserving order.
func (c *Config) FilterSinks(env string) []SinkConfig {
	out := make([]SinkConfig, 0, len(c.Sinks))
	for _, s := range c.Sinks {
		if s.Allows(env) {
			out = append(out, s)
		}
	}
	return out
}

// FilterNotifiers returns the notifiers active in env, preserving order.
func (c *Config) FilterNotifiers(env string) []NotifierConfig {
	out := make([]NotifierConfig, 0, len(c.Notifiers))
	for _, n := range c.Notifiers {
		if n.Allows(env) {
			out = append(out, n)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
