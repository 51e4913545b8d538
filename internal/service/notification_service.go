package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/events"
)

// NotificationService emits operational notifications for handoff lifecycle
// events. Delivery is log-based; failures never reach the session path.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventHandoffInitialized, n.handleInitialized)
	n.dispatcher.Subscribe(events.EventHandoffFailed, n.handleFailed)
	n.dispatcher.Subscribe(events.EventHandoffEnded, n.handleEnded)
	n.dispatcher.Subscribe(events.EventAgentJoined, n.handleAgentJoined)
}

func (n *NotificationService) handleInitialized(ctx context.Context, event events.Event) error {
	n.logger.Info("HandoffInitialized",
		zap.String("conversation_id", event.ConversationID),
		zap.String("provider", string(event.Provider)),
		zap.String("org_id", event.OrgID))
	return nil
}

func (n *NotificationService) handleFailed(ctx context.Context, event events.Event) error {
	n.logger.Warn("HandoffFailed",
		zap.String("conversation_id", event.ConversationID),
		zap.String("provider", string(event.Provider)),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleEnded(ctx context.Context, event events.Event) error {
	n.logger.Info("HandoffEnded",
		zap.String("conversation_id", event.ConversationID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleAgentJoined(ctx context.Context, event events.Event) error {
	n.logger.Info("AgentJoined",
		zap.String("conversation_id", event.ConversationID),
		zap.Any("payload", event.Payload))
	return nil
}
