package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 31822 {
		t.Errorf("Server.Port = %d, want 31822", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if !cfg.Server.AnnouncePort {
		t.Error("Server.AnnouncePort should default to true")
	}
	if cfg.Subscriptions.MaxLive != 3 {
		t.Errorf("Subscriptions.MaxLive = %d, want 3", cfg.Subscriptions.MaxLive)
	}
	if cfg.Git.Command != "git" {
		t.Errorf("Git.Command = %q, want git", cfg.Git.Command)
	}
}

func TestLoad_DerivedPaths(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.DataDir == "" {
		t.Fatal("Store.DataDir should be derived")
	}
	if cfg.Store.Path != filepath.Join(cfg.Store.DataDir, "sandcastle.db") {
		t.Errorf("Store.Path = %q, want under data dir", cfg.Store.Path)
	}
	if cfg.Sessions.TranscriptsDir != filepath.Join(cfg.Store.DataDir, "transcripts") {
		t.Errorf("Sessions.TranscriptsDir = %q, want under data dir", cfg.Sessions.TranscriptsDir)
	}
}

func TestDerive_FollowsDataDirOverride(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	newDir := t.TempDir()
	cfg.Store.DataDir = newDir
	cfg.Store.Path = ""
	cfg.Sessions.TranscriptsDir = ""
	if err := Derive(cfg); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if cfg.Store.Path != filepath.Join(newDir, "sandcastle.db") {
		t.Errorf("Store.Path = %q, want under %s", cfg.Store.Path, newDir)
	}
	if cfg.Sessions.TranscriptsDir != filepath.Join(newDir, "transcripts") {
		t.Errorf("Sessions.TranscriptsDir = %q, want under %s", cfg.Sessions.TranscriptsDir, newDir)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9000\nsubscriptions:\n  max_live: 5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Subscriptions.MaxLive != 5 {
		t.Errorf("Subscriptions.MaxLive = %d, want 5", cfg.Subscriptions.MaxLive)
	}
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:        ServerConfig{Port: 31822, Host: "127.0.0.1"},
			Git:           GitConfig{Command: "git", TimeoutSeconds: 60},
			Subscriptions: SubscriptionsConfig{MaxLive: 3},
			Logging:       LoggingConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"empty git command", func(c *Config) { c.Git.Command = "" }},
		{"zero git timeout", func(c *Config) { c.Git.TimeoutSeconds = 0 }},
		{"zero max live", func(c *Config) { c.Subscriptions.MaxLive = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}

	if err := Validate(base()); err != nil {
		t.Errorf("Validate() on valid config error = %v", err)
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "max_live: 3") {
		t.Errorf("default config missing max_live, got:\n%s", data)
	}

	// Refuses to overwrite.
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() should refuse to overwrite an existing file")
	}
}
