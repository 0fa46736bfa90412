package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefault writes a starter config file at path, populated with the
// current defaults. Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:          31822,
			Host:          "127.0.0.1",
			AnnouncePort:  true,
			HeartbeatSecs: 30,
		},
		Git: GitConfig{
			Command:        "git",
			TimeoutSeconds: 60,
		},
		Subscriptions: SubscriptionsConfig{
			MaxLive: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	header := []byte("# sandcastled configuration\n# Values can also be set via SANDCASTLE_* environment variables.\n")
	return os.WriteFile(path, append(header, data...), 0644)
}
