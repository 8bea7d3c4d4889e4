// Package config provides configuration management for go-test-harness.
package config

import "time"

// Config holds all configuration options for the harness.
type Config struct {
	// Mode
	Watch bool     `json:"watch"`
	Paths []string `json:"paths"` // positional; empty = default discovery roots

	// Build collaborator
	BuildCommand  string        `json:"build_command"`
	BuildOutDir   string        `json:"build_out_dir"`
	BuildInterval time.Duration `json:"build_interval"` // rebuild poll interval in watch mode

	// Spec runner
	SpecCommand string `json:"spec_command"`

	// Watch triggers
	DebounceWindow time.Duration `json:"debounce_window"`
	PollInterval   time.Duration `json:"poll_interval"`
	NotifyURL      string        `json:"notify_url"` // dev server push channel (websocket)

	// Readiness probes
	DatabasePort  int  `json:"database_port"`
	DevServerPort int  `json:"dev_server_port"`
	BrowserPort   int  `json:"browser_port"`
	SkipProbes    bool `json:"skip_probes"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Build collaborator
		BuildCommand:  "harness-bundle",
		BuildOutDir:   ".harness",
		BuildInterval: 600 * time.Millisecond,

		// Spec runner
		SpecCommand: "spec-runner",

		// Watch triggers
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   500 * time.Millisecond,
		NotifyURL:      "ws://127.0.0.1:35729/notify",

		// Readiness probes
		DatabasePort:  28015,
		DevServerPort: 9966,
		BrowserPort:   4444,

		// Observability
		MetricsAddr: "", // disabled unless set
		Verbose:     false,
		LogFormat:   "text",
	}
}
