// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	// Backend holds the collaborator endpoints.
	Backend BackendConfig `toml:"backend"`

	// Session holds per-session behavior.
	Session SessionConfig `toml:"session"`

	// Cache holds persistent-cache settings.
	Cache CacheConfig `toml:"cache"`

	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// BackendConfig contains the backend collaborator endpoints.
type BackendConfig struct {
	// BaseURL is the HTTP base of the backend, e.g. "http://localhost:8000".
	BaseURL string `toml:"base_url"`
	// WebSocketURL is the duplex channel address. Derived from BaseURL
	// when empty ("/ws", ws/wss scheme).
	WebSocketURL string `toml:"websocket_url"`
	// SessionCookie is the value of the backend session cookie attached
	// to authenticated requests. How it is obtained (login) is out of
	// scope for this client.
	SessionCookie string `toml:"session_cookie"`
	// RequestTimeoutSecs bounds each one-shot HTTP request.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// DialTimeoutSecs bounds the WebSocket handshake.
	DialTimeoutSecs int `toml:"dial_timeout_secs"`
}

// SessionConfig contains session behavior settings.
type SessionConfig struct {
	// UserName is the fallback identity used when the history load
	// fails and the server cannot name the authenticated party.
	UserName string `toml:"user_name"`
	// Affirmative is the confirmation vocabulary for a pending
	// document-analysis offer. Empty uses the built-in defaults.
	Affirmative []string `toml:"affirmative"`
	// Rejection is the decline vocabulary. Empty uses the defaults.
	Rejection []string `toml:"rejection"`
}

// CacheConfig contains persistent-cache settings.
type CacheConfig struct {
	// Path is the SQLite file backing the cache.
	// Default: ~/.medassist/cache.db
	Path string `toml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Path is the rotating log file. Default: ~/.medassist/client.log
	Path string `toml:"path"`
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Console mirrors log output to stderr when true.
	Console bool `toml:"console"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultAffirmative is the built-in confirmation vocabulary. It keeps
// the original deployment's Italian tokens alongside the English ones.
var DefaultAffirmative = []string{
	"yes", "yeah", "yep", "ok", "okay", "sure", "please", "confirm",
	"analyze", "analyse", "si", "sì", "va bene", "certo",
}

// DefaultRejection is the built-in decline vocabulary.
var DefaultRejection = []string{
	"no", "nope", "not now", "don't", "dont", "cancel", "decline",
	"skip", "later", "no grazie",
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".medassist")

	return &Config{
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8000",
			RequestTimeoutSecs: 60,
			DialTimeoutSecs:    10,
		},
		Session: SessionConfig{
			UserName:    "",
			Affirmative: append([]string(nil), DefaultAffirmative...),
			Rejection:   append([]string(nil), DefaultRejection...),
		},
		Cache: CacheConfig{
			Path: filepath.Join(base, "cache.db"),
		},
		Log: LogConfig{
			Path:    filepath.Join(base, "client.log"),
			Level:   "info",
			Console: false,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".medassist", "config.toml")
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from path, layering environment
// overrides on top. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	// Fold a local .env into the environment first, matching the
	// original deployment's dotenv bootstrap. Absence is fine.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers MEDASSIST_* environment variables over the
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEDASSIST_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("MEDASSIST_WS_URL"); v != "" {
		c.Backend.WebSocketURL = v
	}
	if v := os.Getenv("MEDASSIST_SESSION_COOKIE"); v != "" {
		c.Backend.SessionCookie = v
	}
	if v := os.Getenv("MEDASSIST_USER_NAME"); v != "" {
		c.Session.UserName = v
	}
	if v := os.Getenv("MEDASSIST_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("MEDASSIST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MEDASSIST_REQUEST_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.RequestTimeoutSecs = n
		}
	}
}

// applyDerived fills values computed from others.
func (c *Config) applyDerived() {
	if c.Backend.WebSocketURL == "" {
		c.Backend.WebSocketURL = deriveWebSocketURL(c.Backend.BaseURL)
	}
	if len(c.Session.Affirmative) == 0 {
		c.Session.Affirmative = append([]string(nil), DefaultAffirmative...)
	}
	if len(c.Session.Rejection) == 0 {
		c.Session.Rejection = append([]string(nil), DefaultRejection...)
	}
}

// deriveWebSocketURL converts an HTTP base URL to the /ws endpoint.
func deriveWebSocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend.base_url %q is not a valid http(s) URL", c.Backend.BaseURL)
	}
	w, err := url.Parse(c.Backend.WebSocketURL)
	if err != nil || (w.Scheme != "ws" && w.Scheme != "wss") {
		return fmt.Errorf("backend.websocket_url %q is not a valid ws(s) URL", c.Backend.WebSocketURL)
	}
	if c.Backend.RequestTimeoutSecs <= 0 {
		return errors.New("backend.request_timeout_secs must be positive")
	}
	if c.Backend.DialTimeoutSecs <= 0 {
		return errors.New("backend.dial_timeout_secs must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug/info/warn/error", c.Log.Level)
	}
	return nil
}

// RequestTimeout returns the HTTP request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// DialTimeout returns the WebSocket dial timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Backend.DialTimeoutSecs) * time.Second
}
