package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/hub"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Send buffer size per client. Sized for transcript replay bursts.
	sendBufferSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback; origins are not restricted.
		return true
	},
}

// Server accepts WebSocket connections and wires each one to the RPC
// dispatcher and a session-filtered event feed.
type Server struct {
	hub        ports.EventHub
	sessions   *session.Manager
	dispatcher *handler.Dispatcher

	heartbeatInterval time.Duration
	heartbeatDone     chan struct{}
	heartbeatSeq      int64
	startTime         time.Time

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewServer creates a new WebSocket server. heartbeatInterval of zero
// disables application-level heartbeats.
func NewServer(eventHub ports.EventHub, sessions *session.Manager, dispatcher *handler.Dispatcher, heartbeatInterval time.Duration) *Server {
	return &Server{
		hub:               eventHub,
		sessions:          sessions,
		dispatcher:        dispatcher,
		heartbeatInterval: heartbeatInterval,
		heartbeatDone:     make(chan struct{}),
		startTime:         time.Now(),
		clients:           make(map[string]*Client),
	}
}

// Start starts the heartbeat broadcaster.
func (s *Server) Start() error {
	if s.heartbeatInterval > 0 {
		go s.heartbeatLoop()
	}
	return nil
}

// Stop disconnects all clients and stops the heartbeat.
func (s *Server) Stop() error {
	close(s.heartbeatDone)

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.clients = make(map[string]*Client)
	s.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}

	return nil
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and
// registers the client. Mount it on the HTTP router's /ws path.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, s.handleCommand, func(id string) {
		s.hub.Unsubscribe(id)
		s.sessions.UnregisterClient(id)
		s.removeClient(id)
	})

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.mu.Unlock()

	// Events reach the client only for its live sessions. Global events
	// always pass through.
	live := s.sessions.RegisterClient(client.ID())
	s.hub.Subscribe(hub.NewSessionFilteredSubscriber(NewClientSubscriber(client), live))

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")

	client.Start()
}

// handleCommand dispatches one incoming JSON-RPC message for a client.
func (s *Server) handleCommand(clientID string, message []byte) {
	ctx := context.WithValue(context.Background(), handler.ClientIDKey, clientID)

	resp, err := s.dispatcher.HandleMessage(ctx, message)
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to handle message")
		return
	}
	if resp == nil {
		return
	}

	s.mu.RLock()
	client := s.clients[clientID]
	s.mu.RUnlock()

	if client != nil {
		client.Send(resp)
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	log.Info().Str("client_id", id).Msg("client disconnected")
}

// Broadcast sends a message to all connected clients.
func (s *Server) Broadcast(message []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		client.Send(message)
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// heartbeatLoop broadcasts periodic heartbeat events. These ride above
// WebSocket ping/pong so clients can monitor liveness at the JSON level.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", s.heartbeatInterval).Msg("heartbeat loop started")

	for {
		select {
		case <-s.heartbeatDone:
			log.Debug().Msg("heartbeat loop stopped")
			return

		case <-ticker.C:
			s.broadcastHeartbeat()
		}
	}
}

func (s *Server) broadcastHeartbeat() {
	if s.ClientCount() == 0 {
		return
	}

	seq := atomic.AddInt64(&s.heartbeatSeq, 1)
	heartbeat := events.NewEvent(events.EventTypeHeartbeat, events.HeartbeatPayload{
		Sequence:      seq,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Subscriptions: s.sessions.LiveCount(),
	})

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	s.Broadcast(data)
}
