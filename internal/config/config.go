// Package config loads and exposes application configuration (TOML + env overrides).
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultTranscriptPath = "messages.txt"
	DefaultGraphBaseURL   = "https://graph.instagram.com/v19.0"
	DefaultGraphAltURL    = "https://graph.facebook.com/v19.0"
	DefaultPollInterval   = 5 * time.Second
	DefaultPollBackoff    = 30 * time.Second
	DefaultAPITimeout     = 15 * time.Second
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log        LogConfig       `toml:"log"`
	Server     ServerConfig    `toml:"server"`
	Instagram  InstagramConfig `toml:"instagram"`
	Webhook    WebhookConfig   `toml:"webhook"`
	Poller     PollerConfig    `toml:"poller"`
	Transcript ScriptConfig    `toml:"transcript"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// InstagramConfig holds platform credentials and API endpoints.
// AccessToken, AppSecret and BusinessAccountID are required at startup.
type InstagramConfig struct {
	AccessToken       string `toml:"access_token"`
	AppSecret         string `toml:"app_secret"`
	BusinessAccountID string `toml:"business_account_id"`
	GraphBaseURL      string `toml:"graph_base_url"`
	GraphAltURL       string `toml:"graph_alt_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// WebhookConfig holds the subscription verify token and signature policy.
// StrictSignature switches signature failures from log-and-continue to HTTP 401.
type WebhookConfig struct {
	VerifyToken     string `toml:"verify_token"`
	StrictSignature bool   `toml:"strict_signature"`
}

// PollerConfig holds polling cadence and error backoff.
type PollerConfig struct {
	Enabled        bool `toml:"enabled"`
	IntervalSecs   int  `toml:"interval_seconds"`
	BackoffSecs    int  `toml:"backoff_seconds"`
	MaxConvs       int  `toml:"max_conversations"`
	MessagesPerCnv int  `toml:"messages_per_conversation"`
}

// ScriptConfig holds the append-only message transcript path.
type ScriptConfig struct {
	Path string `toml:"path"`
}

// APITimeout returns the outbound Graph API call timeout.
func (c InstagramConfig) APITimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultAPITimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the poll cadence.
func (c PollerConfig) Interval() time.Duration {
	if c.IntervalSecs <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.IntervalSecs) * time.Second
}

// Backoff returns the cooldown applied after a failed poll cycle.
func (c PollerConfig) Backoff() time.Duration {
	if c.BackoffSecs <= 0 {
		return DefaultPollBackoff
	}
	return time.Duration(c.BackoffSecs) * time.Second
}

// Load reads and parses the TOML config file at path, applies default values
// for missing fields, and applies environment overrides for credentials.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Instagram: InstagramConfig{
			GraphBaseURL: DefaultGraphBaseURL,
			GraphAltURL:  DefaultGraphAltURL,
		},
		Poller: PollerConfig{
			Enabled:        true,
			MaxConvs:       10,
			MessagesPerCnv: 20,
		},
		Transcript: ScriptConfig{
			Path: DefaultTranscriptPath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if value := os.Getenv("INSTAGRAM_ACCESS_TOKEN"); value != "" {
		cfg.Instagram.AccessToken = value
	}
	if value := os.Getenv("INSTAGRAM_APP_SECRET"); value != "" {
		cfg.Instagram.AppSecret = value
	}
	if value := os.Getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID"); value != "" {
		cfg.Instagram.BusinessAccountID = value
	}
	if value := os.Getenv("WEBHOOK_VERIFY_TOKEN"); value != "" {
		cfg.Webhook.VerifyToken = value
	}
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		cfg.Server.Addr = value
	}
	if value := os.Getenv("PORT"); value != "" {
		if _, err := strconv.Atoi(value); err == nil {
			cfg.Server.Addr = ":" + value
		}
	}
}

// Validate reports missing required credentials. The process must refuse to
// start on error rather than run silently broken.
func (c Config) Validate() error {
	if c.Instagram.AccessToken == "" {
		return errors.New("instagram access token is required (INSTAGRAM_ACCESS_TOKEN)")
	}
	if c.Instagram.AppSecret == "" {
		return errors.New("instagram app secret is required (INSTAGRAM_APP_SECRET)")
	}
	if c.Instagram.BusinessAccountID == "" {
		return errors.New("instagram business account id is required (INSTAGRAM_BUSINESS_ACCOUNT_ID)")
	}
	if c.Webhook.VerifyToken == "" {
		return errors.New("webhook verify token is required (WEBHOOK_VERIFY_TOKEN)")
	}
	return nil
}
