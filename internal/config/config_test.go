package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:5000" {
		t.Errorf("unexpected API base: %s", cfg.APIBaseURL)
	}
	if cfg.SocketURL != "ws://localhost:5000/api/chat" {
		t.Errorf("unexpected socket url: %s", cfg.SocketURL)
	}
	if !cfg.UseSocket {
		t.Error("socket transport should default to enabled")
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if cfg.TypingQuiet != 2*time.Second {
		t.Errorf("unexpected typing quiet period: %v", cfg.TypingQuiet)
	}
	if cfg.DBFile != "nord.db" {
		t.Errorf("unexpected db file: %s", cfg.DBFile)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("unexpected connect timeout: %v", cfg.ConnectTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NORD_API_URL", "http://chat.example.com")
	t.Setenv("NORD_USE_SOCKET", "false")
	t.Setenv("NORD_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://chat.example.com" {
		t.Errorf("override ignored: %s", cfg.APIBaseURL)
	}
	if cfg.UseSocket {
		t.Error("NORD_USE_SOCKET=false ignored")
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("override ignored: %v", cfg.PollInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Bad poll interval", "NORD_POLL_INTERVAL", "soon"},
		{"Bad typing quiet", "NORD_TYPING_QUIET", "-1s"},
		{"Bad socket flag", "NORD_USE_SOCKET", "maybe"},
		{"Bad connect timeout", "NORD_CONNECT_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		APIBaseURL:     "http://localhost:5000",
		SocketURL:      "ws://localhost:5000/api/chat",
		UseSocket:      true,
		PollInterval:   time.Second,
		TypingQuiet:    time.Second,
		ConnectTimeout: time.Second,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	noAPI := base
	noAPI.APIBaseURL = ""
	if err := noAPI.Validate(); err == nil {
		t.Error("missing API base accepted")
	}

	noWS := base
	noWS.SocketURL = ""
	if err := noWS.Validate(); err == nil {
		t.Error("missing socket url accepted while socket enabled")
	}

	// A polling-only deployment does not need the socket url.
	noWS.UseSocket = false
	if err := noWS.Validate(); err != nil {
		t.Errorf("polling-only config rejected: %v", err)
	}
}
