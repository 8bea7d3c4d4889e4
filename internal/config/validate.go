package config

import (
	"errors"
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.BuildCommand == "" {
		errs = append(errs, ValidationError{
			Field:   "build_command",
			Message: "bundler command is required",
		})
	}

	if cfg.SpecCommand == "" {
		errs = append(errs, ValidationError{
			Field:   "spec_command",
			Message: "spec runner command is required",
		})
	}

	if cfg.DebounceWindow <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debounce_window",
			Message: "must be positive",
		})
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be positive",
		})
	}

	if cfg.Watch {
		if err := validateNotifyURL(cfg.NotifyURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "notify_url",
				Message: err.Error(),
			})
		}
	}

	for _, p := range []struct {
		field string
		port  int
	}{
		{"database_port", cfg.DatabasePort},
		{"dev_server_port", cfg.DevServerPort},
		{"browser_port", cfg.BrowserPort},
	} {
		if p.port < 1 || p.port > 65535 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: "must be a valid TCP port",
			})
		}
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: `must be "json" or "text"`,
		})
	}

	return errors.Join(errs...)
}

// validateNotifyURL checks that the notification channel URL is a
// well-formed websocket URL.
func validateNotifyURL(raw string) error {
	if raw == "" {
		return errors.New("required in watch mode")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
