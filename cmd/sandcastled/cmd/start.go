package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sandcastle-dev/sandcastle/internal/app"
	"github.com/sandcastle-dev/sandcastle/internal/config"
	"github.com/spf13/cobra"
)

var (
	port       int
	host       string
	dataDir    string
	noAnnounce bool
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sandcastled server",
	Long: `Start the sandcastled server and begin accepting WebSocket
connections from the desktop shell.

On startup the server prints SANDCASTLE_SERVER_PORT=<port> on stdout once
it is listening, so an embedding process can find it even when the port
is chosen dynamically. Pass --no-announce to suppress that line.

Example:
  sandcastled start
  sandcastled start --port 31900 --no-announce
  sandcastled start --data-dir /tmp/sandcastle`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&port, "port", 0, "server port for HTTP and WebSocket (default: 31822)")
	startCmd.Flags().StringVar(&host, "host", "", "host interface to bind (default: 127.0.0.1)")
	startCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for server state (default: ~/.sandcastle)")
	startCmd.Flags().BoolVar(&noAnnounce, "no-announce", false, "do not print the port announce line on stdout")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyFlagOverrides(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("data_dir", cfg.Store.DataDir).
		Msg("starting sandcastled")

	application, err := app.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("sandcastled stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// applyFlagOverrides layers command-line flags over the loaded config and
// re-validates. A --data-dir override clears the paths Load derived from
// the old data dir so they follow the new one.
func applyFlagOverrides(cfg *config.Config) error {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if dataDir != "" {
		cfg.Store.DataDir = dataDir
		cfg.Store.Path = ""
		cfg.Sessions.TranscriptsDir = ""
		if err := config.Derive(cfg); err != nil {
			return err
		}
	}
	if noAnnounce {
		cfg.Server.AnnouncePort = false
	}

	return config.Validate(cfg)
}

// setupLogging configures the global zerolog logger and returns the slog
// logger handed to the application layer.
func setupLogging(cfg *config.Config) *slog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	slogLevel := slog.LevelInfo
	switch {
	case verbose, level <= zerolog.DebugLevel:
		slogLevel = slog.LevelDebug
	case level == zerolog.WarnLevel:
		slogLevel = slog.LevelWarn
	case level >= zerolog.ErrorLevel:
		slogLevel = slog.LevelError
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.Kitchen,
	}))
}
