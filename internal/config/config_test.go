// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	cfg.applyDerived()

	if cfg.Backend.BaseURL == "" {
		t.Error("default base URL should not be empty")
	}
	if cfg.Backend.WebSocketURL == "" {
		t.Error("derived websocket URL should not be empty")
	}
	if len(cfg.Session.Affirmative) == 0 {
		t.Error("default affirmative vocabulary should not be empty")
	}
	if len(cfg.Session.Rejection) == 0 {
		t.Error("default rejection vocabulary should not be empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("expected default base URL, got %q", cfg.Backend.BaseURL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
base_url = "https://assist.example.com"
request_timeout_secs = 30

[session]
user_name = "Guest"
affirmative = ["yes", "go ahead"]

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "https://assist.example.com" {
		t.Errorf("base URL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.WebSocketURL != "wss://assist.example.com/ws" {
		t.Errorf("derived websocket URL = %q", cfg.Backend.WebSocketURL)
	}
	if cfg.Backend.RequestTimeoutSecs != 30 {
		t.Errorf("request timeout = %d", cfg.Backend.RequestTimeoutSecs)
	}
	if cfg.Session.UserName != "Guest" {
		t.Errorf("user name = %q", cfg.Session.UserName)
	}
	if len(cfg.Session.Affirmative) != 2 {
		t.Errorf("affirmative vocab = %v", cfg.Session.Affirmative)
	}
	// Rejection was left empty in the file so defaults apply.
	if len(cfg.Session.Rejection) == 0 {
		t.Error("rejection vocab should fall back to defaults")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEDASSIST_BASE_URL", "http://10.0.0.5:9000")
	t.Setenv("MEDASSIST_USER_NAME", "EnvUser")
	t.Setenv("MEDASSIST_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("base URL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.WebSocketURL != "ws://10.0.0.5:9000/ws" {
		t.Errorf("derived websocket URL = %q", cfg.Backend.WebSocketURL)
	}
	if cfg.Session.UserName != "EnvUser" {
		t.Errorf("user name = %q", cfg.Session.UserName)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"bad base scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }},
		{"bad ws scheme", func(c *Config) { c.Backend.WebSocketURL = "http://x/ws" }},
		{"zero request timeout", func(c *Config) { c.Backend.RequestTimeoutSecs = 0 }},
		{"zero dial timeout", func(c *Config) { c.Backend.DialTimeoutSecs = 0 }},
		{"bogus log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.applyDerived()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestDeriveWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws"},
		{"https://host.example", "wss://host.example/ws"},
		{"http://host/base/", "ws://host/base/ws"},
	}
	for _, tt := range tests {
		if got := deriveWebSocketURL(tt.base); got != tt.want {
			t.Errorf("deriveWebSocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
