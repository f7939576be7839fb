// Package config defines the bot configuration, loads it from YAML with
// environment expansion, and resolves credentials from the environment
// and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/gemini"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/line"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/memory"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/report"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/server"
)

// Config is the root configuration.
type Config struct {
	// Name labels the bot in logs.
	Name string `yaml:"name"`

	Logging  LoggingConfig  `yaml:"logging"`
	Server   server.Config  `yaml:"server"`
	Line     line.Config    `yaml:"line"`
	Gemini   gemini.Config  `yaml:"gemini"`
	History  HistoryConfig  `yaml:"history"`
	Activity ActivityConfig `yaml:"activity"`
	Admin    AdminConfig    `yaml:"admin"`
	Report   ReportConfig   `yaml:"report"`
	Replies  RepliesConfig  `yaml:"replies"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HistoryConfig bounds the per-user conversation memory.
type HistoryConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// ActivityConfig controls the activity log.
type ActivityConfig struct {
	// Retention is a Go duration string, e.g. "168h" for one week.
	Retention string `yaml:"retention"`
	// SnapshotPath is where the log mirrors itself; relative paths are
	// resolved against the config file.
	SnapshotPath string `yaml:"snapshot_path"`
}

// AdminConfig identifies the admin and their report trigger.
type AdminConfig struct {
	UserID  string `yaml:"user_id"`
	Trigger string `yaml:"trigger"`
}

// ReportConfig controls the daily report push.
type ReportConfig struct {
	// At is the local trigger time, "HH:MM" in Timezone.
	At       string `yaml:"at"`
	Timezone string `yaml:"timezone"`
	// MaxChunk caps report chunks in runes.
	MaxChunk int `yaml:"max_chunk"`
}

// RepliesConfig overrides the bot's fixed reply strings. Empty fields
// keep the built-in Japanese defaults.
type RepliesConfig struct {
	Apology      string `yaml:"apology"`
	ImageApology string `yaml:"image_apology"`
	ImagePrompt  string `yaml:"image_prompt"`
}

// Default returns the configuration used when fields are absent from the
// YAML file.
func Default() *Config {
	return &Config{
		Name:    "lineclaw",
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server:  server.Config{Address: ":8080"},
		Gemini:  gemini.Config{Model: gemini.DefaultModel},
		History: HistoryConfig{MaxTurns: memory.DefaultMaxTurns},
		Activity: ActivityConfig{
			Retention:    "168h",
			SnapshotPath: "data/activity.json",
		},
		Admin: AdminConfig{Trigger: "/report"},
		Report: ReportConfig{
			At:       "08:00",
			Timezone: "Asia/Tokyo",
			MaxChunk: report.DefaultMaxChunkRunes,
		},
	}
}

// Validate checks everything the serve command needs to start. Credential
// errors spell out the resolution order so a missing secret is a one-line
// fix.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("config: server.address is required")
	}
	if c.Line.ChannelSecret == "" {
		return errors.New("config: LINE channel secret is not set (env LINE_CHANNEL_SECRET, 'lineclaw secret set channel_secret', or line.channel_secret)")
	}
	if c.Line.ChannelToken == "" {
		return errors.New("config: LINE channel token is not set (env LINE_CHANNEL_TOKEN, 'lineclaw secret set channel_token', or line.channel_token)")
	}
	if c.Gemini.APIKey == "" {
		return errors.New("config: Gemini API key is not set (env GEMINI_API_KEY, 'lineclaw secret set gemini_api_key', or gemini.api_key)")
	}
	if c.Admin.UserID == "" {
		return errors.New("config: admin.user_id is required for activity reports")
	}
	if c.Admin.Trigger == "" {
		return errors.New("config: admin.trigger must not be empty")
	}
	if _, err := time.Parse("15:04", c.Report.At); err != nil {
		return fmt.Errorf("config: report.at %q must be HH:MM: %w", c.Report.At, err)
	}
	if c.Report.Timezone != "" {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			return fmt.Errorf("config: report.timezone %q: %w", c.Report.Timezone, err)
		}
	}
	return nil
}

// RetentionWindow parses the configured retention, falling back to the
// activity default on empty or invalid values.
func (c ActivityConfig) RetentionWindow() time.Duration {
	if c.Retention == "" {
		return activity.DefaultRetention
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil || d <= 0 {
		slog.Warn("invalid activity.retention, using default",
			"value", c.Retention,
			"default", activity.DefaultRetention.String(),
		)
		return activity.DefaultRetention
	}
	return d
}

// Zone resolves the report timezone, defaulting to the system zone.
func (c ReportConfig) Zone() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("invalid report.timezone, using system zone", "value", c.Timezone)
		return time.Local
	}
	return loc
}
