// Package methods provides JSON-RPC method implementations.
package methods

import (
	"context"
	"encoding/json"

	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/message"
	"github.com/sandcastle-dev/sandcastle/internal/session"
)

// SessionOrchestrator manages per-client live session subscriptions.
type SessionOrchestrator interface {
	Visit(ctx context.Context, clientID, sessionID string) (*session.VisitResult, error)
	Leave(ctx context.Context, clientID, sessionID string) error
	Subscribed(clientID string) []string
}

// SubscriptionService handles live session subscription RPC methods.
type SubscriptionService struct {
	orchestrator SessionOrchestrator
	maxLive      int
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(orchestrator SessionOrchestrator, maxLive int) *SubscriptionService {
	return &SubscriptionService{
		orchestrator: orchestrator,
		maxLive:      maxLive,
	}
}

// RegisterMethods registers all subscription methods with the handler.
func (s *SubscriptionService) RegisterMethods(registry *handler.Registry) {
	registry.Register("session/visit", s.Visit)
	registry.Register("session/leave", s.Leave)
	registry.Register("session/subscriptions", s.Subscriptions)
}

// Visit marks a session live for the calling client. The session's
// transcript starts streaming to the client; the least recently visited
// session is evicted when the live set is full.
func (s *SubscriptionService) Visit(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.SessionID == "" {
		return nil, message.ErrInvalidParams("session_id is required")
	}

	clientID := handler.ClientID(ctx)
	if clientID == "" {
		return nil, message.ErrInternalError("client ID not found in context")
	}

	result, err := s.orchestrator.Visit(ctx, clientID, p.SessionID)
	if err != nil {
		return nil, message.FromError(err)
	}

	response := map[string]interface{}{
		"success":    true,
		"session":    result.Session,
		"subscribed": s.orchestrator.Subscribed(clientID),
	}
	if result.Evicted != "" {
		response["evicted"] = result.Evicted
	}
	return response, nil
}

// Leave drops the calling client's live subscription for a session.
func (s *SubscriptionService) Leave(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.SessionID == "" {
		return nil, message.ErrInvalidParams("session_id is required")
	}

	clientID := handler.ClientID(ctx)
	if clientID == "" {
		return nil, message.ErrInternalError("client ID not found in context")
	}

	if err := s.orchestrator.Leave(ctx, clientID, p.SessionID); err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success":    true,
		"session_id": p.SessionID,
		"subscribed": s.orchestrator.Subscribed(clientID),
	}, nil
}

// Subscriptions returns the calling client's live sessions, most recently
// visited first.
func (s *SubscriptionService) Subscriptions(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	clientID := handler.ClientID(ctx)
	if clientID == "" {
		return nil, message.ErrInternalError("client ID not found in context")
	}

	return map[string]interface{}{
		"subscribed": s.orchestrator.Subscribed(clientID),
		"max_live":   s.maxLive,
	}, nil
}
