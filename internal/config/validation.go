package config

import (
	"github.com/sandcastle-dev/sandcastle/internal/domain"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return domain.NewValidationError("server.port", "must be between 1 and 65535")
	}
	if cfg.Server.Host == "" {
		return domain.NewValidationError("server.host", "must not be empty")
	}
	if cfg.Server.HeartbeatSecs < 0 {
		return domain.NewValidationError("server.heartbeat_secs", "must not be negative")
	}
	if cfg.Git.Command == "" {
		return domain.NewValidationError("git.command", "must not be empty")
	}
	if cfg.Git.TimeoutSeconds < 1 {
		return domain.NewValidationError("git.timeout_seconds", "must be at least 1")
	}
	if cfg.Subscriptions.MaxLive < 1 {
		return domain.NewValidationError("subscriptions.max_live", "must be at least 1")
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return domain.NewValidationError("logging.level", "must be one of trace, debug, info, warn, error")
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return domain.NewValidationError("logging.format", "must be console or json")
	}

	return nil
}
