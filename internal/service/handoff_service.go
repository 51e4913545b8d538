package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/config"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/handoff"
	"github.com/spec-kit/handoff-service/internal/settings"
	"github.com/spec-kit/handoff-service/internal/strategy"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// HandoffService fronts the orchestration core for the HTTP layer: resolves
// tenant configuration, builds orchestrators, and owns the per-conversation
// token managers.
type HandoffService struct {
	cfg        *config.Config
	resolver   settings.Resolver
	registry   *handoff.Registry
	sessions   handoff.SessionClient
	streams    handoff.StreamOpener
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu     sync.RWMutex
	tokens map[string]*auth.TokenManager
}

// HandoffDependencies bundles collaborators for the handoff service.
type HandoffDependencies struct {
	Resolver   settings.Resolver
	Registry   *handoff.Registry
	Sessions   handoff.SessionClient
	Streams    handoff.StreamOpener
	Dispatcher events.Dispatcher
}

// NewHandoffService constructs the service.
func NewHandoffService(cfg *config.Config, deps HandoffDependencies, logger *zap.Logger) *HandoffService {
	return &HandoffService{
		cfg:        cfg,
		resolver:   deps.Resolver,
		registry:   deps.Registry,
		sessions:   deps.Sessions,
		streams:    deps.Streams,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		tokens:     make(map[string]*auth.TokenManager),
	}
}

// InitializeInput describes a handoff initialization request.
type InitializeInput struct {
	OrgID          string
	AgentID        string
	SignedUserData string
	History        []domain.ChatMessage
}

// InitializeResult is returned to the HTTP layer; Token travels back to the
// browser in a dedicated response header.
type InitializeResult struct {
	ConversationID string
	SessionID      string
	Status         domain.HandoffStatus
	Token          string
	TokenExpiresAt time.Time
}

// Initialize resolves configuration, verifies user identity, and drives the
// orchestrator through session creation.
func (s *HandoffService) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	providerCfg, err := s.resolver.GetHandoffConfiguration(ctx, input.OrgID, input.AgentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if providerCfg == nil {
		return nil, apperrors.NewConfigurationError("handoff is not configured for this tenant", nil)
	}
	if !providerCfg.Valid() {
		return nil, apperrors.NewConfigurationError("provider configuration is incomplete", nil)
	}

	strat := strategy.New(string(providerCfg.Type), providerCfg)
	if strat == nil {
		return nil, apperrors.NewConfigurationError("unsupported handoff provider", map[string]any{
			"type": string(providerCfg.Type),
		})
	}

	var profile *domain.UserProfile
	if input.SignedUserData != "" {
		profile, err = auth.DecryptAndVerifySignedUserData(input.SignedUserData, s.cfg.Auth.UserDataSecret)
		if err != nil {
			return nil, apperrors.NewUnauthorized("signed user data verification failed")
		}
	}

	orchestrator := handoff.New(handoff.Deps{
		Config:      *providerCfg,
		OrgID:       input.OrgID,
		Strategy:    strat,
		Sessions:    s.sessions,
		Streams:     s.streams,
		Dispatcher:  s.dispatcher,
		Logger:      s.logger,
		IdleTimeout: s.cfg.Handoff.IdleTimeout(),
	})
	for _, msg := range input.History {
		orchestrator.IngestBotMessage(msg)
	}

	if err := orchestrator.InitializeHandoff(ctx, profile); err != nil {
		return nil, err
	}

	session := orchestrator.Session()
	s.registry.Put(session.ConversationID, orchestrator)

	tokenManager := auth.NewTokenManager(*providerCfg, s.cfg.Auth.SessionTokenTTLMinutes)
	s.mu.Lock()
	s.tokens[session.ConversationID] = tokenManager
	s.mu.Unlock()

	userForToken := domain.UserProfile{}
	if profile != nil {
		userForToken = *profile
	}
	token, expiresAt, err := tokenManager.GenerateSessionToken(userForToken, orchestrator.SessionID(), session.ConversationID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &InitializeResult{
		ConversationID: session.ConversationID,
		SessionID:      orchestrator.SessionID(),
		Status:         session.Status,
		Token:          token,
		TokenExpiresAt: expiresAt,
	}, nil
}

// ValidateSessionToken implements the auth middleware's validator against
// the per-conversation token manager.
func (s *HandoffService) ValidateSessionToken(conversationID, token string) (*auth.SessionClaims, error) {
	s.mu.RLock()
	manager, ok := s.tokens[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewUnauthorized("unknown session")
	}
	return manager.ParseSessionToken(token)
}

// Send delivers a user message into an active handoff session.
func (s *HandoffService) Send(ctx context.Context, conversationID, text string) error {
	orchestrator, ok := s.registry.Get(conversationID)
	if !ok {
		return apperrors.NewNotFound("handoff session", nil)
	}
	return orchestrator.AskHandoff(ctx, text)
}

// End tears a session down. Idempotent: unknown conversations are no-ops.
func (s *HandoffService) End(conversationID string) {
	orchestrator, ok := s.registry.Get(conversationID)
	if !ok {
		return
	}
	orchestrator.HandleEndHandoff()
	s.registry.Remove(conversationID)
	s.mu.Lock()
	delete(s.tokens, conversationID)
	s.mu.Unlock()
}

// Timeline returns the merged timeline snapshot.
func (s *HandoffService) Timeline(conversationID string) ([]domain.ChatEvent, error) {
	orchestrator, ok := s.registry.Get(conversationID)
	if !ok {
		return nil, apperrors.NewNotFound("handoff session", nil)
	}
	return orchestrator.MergedTimeline(), nil
}

// Subscribe attaches an SSE listener to the session's timeline.
func (s *HandoffService) Subscribe(conversationID string) (<-chan domain.ChatEvent, func(), error) {
	orchestrator, ok := s.registry.Get(conversationID)
	if !ok {
		return nil, nil, apperrors.NewNotFound("handoff session", nil)
	}
	ch, cancel := orchestrator.SubscribeTimeline()
	return ch, cancel, nil
}
