// Package config handles configuration management for sandcastled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Git           GitConfig           `mapstructure:"git" yaml:"git"`
	Sessions      SessionsConfig      `mapstructure:"sessions" yaml:"sessions"`
	Subscriptions SubscriptionsConfig `mapstructure:"subscriptions" yaml:"subscriptions"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`

	// AnnouncePort controls whether the server prints
	// SANDCASTLE_SERVER_PORT=<port> on stdout once it is listening. The
	// desktop shell parses this line to find the server.
	AnnouncePort bool `mapstructure:"announce_port" yaml:"announce_port"`

	// HeartbeatSecs is the interval between heartbeat events to connected
	// clients. Zero disables heartbeats.
	HeartbeatSecs int `mapstructure:"heartbeat_secs" yaml:"heartbeat_secs"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// Path to the SQLite database file. Empty means
	// <data_dir>/sandcastle.db.
	Path string `mapstructure:"path" yaml:"path"`

	// DataDir is the root directory for server state (database,
	// transcripts). Empty means ~/.sandcastle.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// GitConfig holds git invocation configuration.
type GitConfig struct {
	Command        string `mapstructure:"command" yaml:"command"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SessionsConfig holds chat session configuration.
type SessionsConfig struct {
	// TranscriptsDir is where session transcripts (<session-id>.jsonl)
	// live. Empty means <data_dir>/transcripts.
	TranscriptsDir string `mapstructure:"transcripts_dir" yaml:"transcripts_dir"`
}

// SubscriptionsConfig bounds live session streaming.
type SubscriptionsConfig struct {
	// MaxLive is the maximum number of simultaneously-live session
	// subscriptions per connected client. Visiting a session beyond this
	// cap evicts the least-recently-visited one.
	MaxLive int `mapstructure:"max_live" yaml:"max_live"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sandcastle")
		v.AddConfigPath("/etc/sandcastle")
	}

	v.SetEnvPrefix("SANDCASTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Derive(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults. 31822 matches the desktop shell's expectation.
	v.SetDefault("server.port", 31822)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.announce_port", true)
	v.SetDefault("server.heartbeat_secs", 30)

	// Store defaults
	v.SetDefault("store.path", "")
	v.SetDefault("store.data_dir", "")

	// Git defaults
	v.SetDefault("git.command", "git")
	v.SetDefault("git.timeout_seconds", 60)

	// Sessions defaults
	v.SetDefault("sessions.transcripts_dir", "")

	// Subscriptions defaults
	v.SetDefault("subscriptions.max_live", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Derive resolves paths derived from the data dir. Callers that override
// Store.DataDir after Load must clear Store.Path and Sessions.TranscriptsDir
// and call Derive again so the derived paths follow.
func Derive(cfg *Config) error {
	if cfg.Store.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Store.DataDir = filepath.Join(homeDir, ".sandcastle")
	}

	absDataDir, err := filepath.Abs(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.Store.DataDir = absDataDir

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Store.DataDir, "sandcastle.db")
	}
	if cfg.Sessions.TranscriptsDir == "" {
		cfg.Sessions.TranscriptsDir = filepath.Join(cfg.Store.DataDir, "transcripts")
	}

	return nil
}

// GetConfigDir returns the user config directory for sandcastled.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".sandcastle"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
