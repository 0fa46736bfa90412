// Package app wires all components together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sandcastle-dev/sandcastle/internal/config"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/hub"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler/methods"
	httpserver "github.com/sandcastle-dev/sandcastle/internal/server/http"
	"github.com/sandcastle-dev/sandcastle/internal/server/websocket"
	"github.com/sandcastle-dev/sandcastle/internal/session"
	"github.com/sandcastle-dev/sandcastle/internal/store"
	"github.com/sandcastle-dev/sandcastle/internal/worktree"
)

// portAnnouncePrefix is printed to stdout once the HTTP listener is bound.
// Launcher shells read this line to discover the port.
const portAnnouncePrefix = "SANDCASTLE_SERVER_PORT="

// App orchestrates all components.
type App struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger

	hub        *hub.Hub
	store      *store.Store
	sessions   *session.Manager
	worktrees  *worktree.Manager
	dispatcher *handler.Dispatcher
	wsServer   *websocket.Server
	httpServer *httpserver.Server

	startTime time.Time

	mu      sync.Mutex
	running bool
}

// New creates a new App. The slog logger feeds the session orchestrator;
// everything else logs through the zerolog global.
func New(cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	return &App{
		cfg:     cfg,
		version: version,
		logger:  logger,
		hub:     hub.New(),
	}, nil
}

// Start brings up all components and blocks until the context is
// cancelled, then shuts down in reverse order.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Trace every broadcast for debugging
	a.hub.Subscribe(hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	}))

	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st

	if err := os.MkdirAll(a.cfg.Sessions.TranscriptsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	a.sessions = session.NewManager(a.store, a.hub, a.cfg, a.logger)
	a.worktrees = worktree.NewManager(
		a.store,
		a.hub,
		a.cfg.Git.Command,
		time.Duration(a.cfg.Git.TimeoutSeconds)*time.Second,
	)

	registry := handler.NewRegistry()
	registry.RegisterService(methods.NewSubscriptionService(a.sessions, a.cfg.Subscriptions.MaxLive))
	registry.RegisterService(methods.NewSessionService(a.sessions))
	registry.RegisterService(methods.NewRepositoryService(a.store, a.hub))
	registry.RegisterService(methods.NewWorktreeService(a.worktrees))
	registry.RegisterService(methods.NewStatusService(a.version, a.store, a.hub, a.sessions))
	a.dispatcher = handler.NewDispatcher(registry)

	a.wsServer = websocket.NewServer(
		a.hub,
		a.sessions,
		a.dispatcher,
		time.Duration(a.cfg.Server.HeartbeatSecs)*time.Second,
	)
	if err := a.wsServer.Start(); err != nil {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}

	a.httpServer = httpserver.New(
		a.cfg.Server.Host,
		a.cfg.Server.Port,
		a.version,
		a.wsServer.HandleUpgrade,
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	if a.cfg.Server.AnnouncePort {
		// Stdout, not the logger: the launcher parses this line.
		fmt.Printf("%s%d\n", portAnnouncePrefix, a.httpServer.Port())
	}

	log.Info().
		Str("version", a.version).
		Str("host", a.cfg.Server.Host).
		Int("port", a.httpServer.Port()).
		Str("store", a.cfg.Store.Path).
		Int("max_live", a.cfg.Subscriptions.MaxLive).
		Msg("server started")

	<-ctx.Done()
	return a.shutdown()
}

// shutdown stops components in reverse startup order.
func (a *App) shutdown() error {
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown error")
		}
	}
	if a.wsServer != nil {
		if err := a.wsServer.Stop(); err != nil {
			log.Warn().Err(err).Msg("websocket server shutdown error")
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Stop(); err != nil {
			log.Warn().Err(err).Msg("session manager shutdown error")
		}
	}
	if err := a.hub.Stop(); err != nil {
		log.Warn().Err(err).Msg("event hub shutdown error")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("store close error")
		}
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("shutdown complete")
	return nil
}

// Port returns the HTTP server's bound port. Valid once Start has
// announced it.
func (a *App) Port() int {
	if a.httpServer == nil {
		return 0
	}
	return a.httpServer.Port()
}

// UptimeSeconds returns seconds since startup.
func (a *App) UptimeSeconds() int64 {
	return int64(time.Since(a.startTime).Seconds())
}
