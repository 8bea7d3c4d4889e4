package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Watch {
		t.Error("watch should default to off")
	}
	if cfg.DebounceWindow != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.DebounceWindow)
	}
	if cfg.BuildCommand == "" {
		t.Error("build command should have a default")
	}
	if cfg.SpecCommand == "" {
		t.Error("spec command should have a default")
	}
	if cfg.MetricsAddr != "" {
		t.Error("metrics should be disabled by default")
	}
}

func TestValidate(t *testing.T) {
	t.Run("defaults_are_valid", func(t *testing.T) {
		if err := Validate(DefaultConfig()); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("missing_build_command", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BuildCommand = ""
		err := Validate(cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "build_command") {
			t.Errorf("error should name the field: %v", err)
		}
	})

	t.Run("zero_debounce", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DebounceWindow = 0
		if err := Validate(cfg); err == nil {
			t.Error("expected error for zero debounce window")
		}
	})

	t.Run("invalid_port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DatabasePort = 0
		if err := Validate(cfg); err == nil {
			t.Error("expected error for port 0")
		}
	})

	t.Run("notify_url_only_checked_in_watch_mode", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NotifyURL = "http://not-a-websocket"
		if err := Validate(cfg); err != nil {
			t.Errorf("single-shot mode should not validate notify url: %v", err)
		}

		cfg.Watch = true
		if err := Validate(cfg); err == nil {
			t.Error("watch mode should reject non-ws scheme")
		}
	})

	t.Run("multiple_errors_aggregated", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BuildCommand = ""
		cfg.SpecCommand = ""
		err := Validate(cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		msg := err.Error()
		if !strings.Contains(msg, "build_command") || !strings.Contains(msg, "spec_command") {
			t.Errorf("expected both fields in error, got: %v", err)
		}
	})
}

func TestValidateNotifyURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid_ws", "ws://127.0.0.1:35729/notify", false},
		{"valid_wss", "wss://dev.local/notify", false},
		{"empty", "", true},
		{"http_scheme", "http://127.0.0.1:35729", true},
		{"no_host", "ws://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNotifyURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNotifyURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
