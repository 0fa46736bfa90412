// Package http implements the HTTP surface: health checks, markdown
// rendering, and the WebSocket mount point.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests.
type WebSocketHandler func(http.ResponseWriter, *http.Request)

// Server is the HTTP API server.
type Server struct {
	server    *http.Server
	router    *mux.Router
	addr      string
	version   string
	wsHandler WebSocketHandler

	listener net.Listener
}

// New creates a new HTTP server. The WebSocket handler is mounted at /ws.
func New(host string, port int, version string, wsHandler WebSocketHandler) *Server {
	s := &Server{
		addr:      fmt.Sprintf("%s:%d", host, port),
		version:   version,
		wsHandler: wsHandler,
		router:    mux.NewRouter(),
	}

	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/markdown", s.handleMarkdown).Methods(http.MethodPost)
	if wsHandler != nil {
		s.router.HandleFunc("/ws", wsHandler)
	}

	s.server = &http.Server{
		Handler: s.router,
		// No ReadTimeout/WriteTimeout: they would also apply to the
		// long-lived WebSocket connections mounted at /ws.
	}

	return s
}

// Router returns the underlying router for tests and extra mounts.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start binds the listen address and begins serving. It returns once the
// listener is bound, so Port() is valid after it returns.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	log.Info().Str("addr", listener.Addr().String()).Msg("http server starting")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	return nil
}

// Port returns the bound port. Valid only after Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("http server stopping")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
