package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandcastle-dev/sandcastle/internal/config"
	"github.com/spf13/cobra"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage sandcastled configuration.

Without subcommands, shows the current effective configuration.

Examples:
  sandcastled config              # Show current config
  sandcastled config init         # Create config file with defaults
  sandcastled config path         # Show config file location`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cfg)
		return nil
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings.

By default, creates ~/.sandcastle/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  sandcastled config init          # Create ~/.sandcastle/config.yaml
  sandcastled config init --local  # Create ./config.yaml
  sandcastled config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.sandcastle/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		if !configInitForce {
			return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("failed to replace config: %w", err)
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit this file to customize sandcastled behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config dir: %v\n", err)
		os.Exit(1)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	locations := []string{
		"./config.yaml",
		configPath,
		"/etc/sandcastle/config.yaml",
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	fmt.Printf("\nConfig directory: %s\n", configDir)
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Port:            %d\n", cfg.Server.Port)
	fmt.Printf("Host:            %s\n", cfg.Server.Host)
	fmt.Printf("Announce Port:   %t\n", cfg.Server.AnnouncePort)
	fmt.Printf("Data Dir:        %s\n", cfg.Store.DataDir)
	fmt.Printf("Database:        %s\n", cfg.Store.Path)
	fmt.Printf("Transcripts:     %s\n", cfg.Sessions.TranscriptsDir)
	fmt.Printf("Git Command:     %s\n", cfg.Git.Command)
	fmt.Printf("Max Live:        %d\n", cfg.Subscriptions.MaxLive)
	fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:      %s\n", cfg.Logging.Format)
}
