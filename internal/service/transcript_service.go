package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/repository"
)

// TranscriptService persists session lifecycle and timeline events emitted
// by orchestrators. Persistence failures are logged, never propagated: the
// live session must not depend on the audit trail.
type TranscriptService struct {
	sessions    repository.SessionRepository
	transcripts repository.TranscriptRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TranscriptDependencies bundles repositories for the transcript service.
type TranscriptDependencies struct {
	SessionRepo    repository.SessionRepository
	TranscriptRepo repository.TranscriptRepository
	Dispatcher     events.Dispatcher
}

// NewTranscriptService constructs the service.
func NewTranscriptService(deps TranscriptDependencies, logger *zap.Logger) *TranscriptService {
	return &TranscriptService{
		sessions:    deps.SessionRepo,
		transcripts: deps.TranscriptRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to orchestrator events.
func (s *TranscriptService) RegisterHandlers() {
	if s.dispatcher == nil || s.sessions == nil || s.transcripts == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventHandoffInitialized, s.handleInitialized)
	s.dispatcher.Subscribe(events.EventHandoffEnded, s.handleEnded)
	s.dispatcher.Subscribe(events.EventAgentJoined, s.handleAgentJoined)
	s.dispatcher.Subscribe(events.EventTimelineAppended, s.handleTimelineAppended)
}

func (s *TranscriptService) handleInitialized(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.HandoffInitializedPayload)
	if !ok {
		return nil
	}
	record := &domain.SessionRecord{
		ID:             payload.SessionID,
		OrgID:          event.OrgID,
		Provider:       event.Provider,
		ConversationID: event.ConversationID,
		Status:         domain.HandoffInitialized,
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist session record",
			zap.String("conversation_id", event.ConversationID), zap.Error(err))
	}
	return nil
}

func (s *TranscriptService) handleEnded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.HandoffEndedPayload)
	if !ok || payload.SessionID == "" {
		return nil
	}
	now := time.Now()
	if err := s.sessions.UpdateStatus(ctx, payload.SessionID, domain.HandoffNotInitialized, &now); err != nil {
		s.logger.Warn("failed to close session record",
			zap.String("session_id", payload.SessionID), zap.Error(err))
	}
	return nil
}

func (s *TranscriptService) handleAgentJoined(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AgentJoinedPayload)
	if !ok {
		return nil
	}
	record, err := s.sessions.GetByConversation(ctx, event.ConversationID)
	if err != nil {
		return nil
	}
	if err := s.sessions.SetAgentName(ctx, record.ID, payload.AgentName); err != nil {
		s.logger.Warn("failed to persist agent name",
			zap.String("session_id", record.ID), zap.Error(err))
	}
	return nil
}

func (s *TranscriptService) handleTimelineAppended(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TimelineAppendedPayload)
	if !ok || payload.SessionID == "" {
		return nil
	}
	entry := payload.Entry
	transcriptEvent := &domain.TranscriptEvent{
		ID:             entry.ID,
		SessionID:      payload.SessionID,
		Kind:           entry.Kind,
		Author:         entry.Author,
		Body:           entry.Content,
		EventTimestamp: entry.Timestamp,
	}
	if entry.AgentName != "" {
		name := entry.AgentName
		transcriptEvent.AgentName = &name
	}
	if err := s.transcripts.Append(ctx, transcriptEvent); err != nil {
		s.logger.Warn("failed to persist transcript event",
			zap.String("session_id", payload.SessionID), zap.Error(err))
	}
	return nil
}
