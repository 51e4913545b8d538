package events

import (
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventHandoffInitialized EventType = "handoff_initialized"
	EventHandoffFailed      EventType = "handoff_failed"
	EventHandoffEnded       EventType = "handoff_ended"
	EventAgentJoined        EventType = "agent_joined"
	EventTimelineAppended   EventType = "timeline_appended"
)

// Event represents a domain event emitted by the orchestrator.
type Event struct {
	ID             string              `json:"id"`
	Type           EventType           `json:"type"`
	OrgID          string              `json:"org_id"`
	Provider       domain.ProviderType `json:"provider"`
	ConversationID string              `json:"conversation_id"`
	Timestamp      time.Time           `json:"timestamp"`
	Payload        interface{}         `json:"payload"`
}

// HandoffInitializedPayload payload.
type HandoffInitializedPayload struct {
	SessionID       string `json:"session_id"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// HandoffFailedPayload payload.
type HandoffFailedPayload struct {
	Reason string `json:"reason"`
}

// HandoffEndedPayload payload.
type HandoffEndedPayload struct {
	SessionID string `json:"session_id"`
	Initiator string `json:"initiator"` // "user" or "provider"
}

// AgentJoinedPayload payload.
type AgentJoinedPayload struct {
	AgentName string `json:"agent_name"`
}

// TimelineAppendedPayload payload.
type TimelineAppendedPayload struct {
	SessionID string           `json:"session_id"`
	Entry     domain.ChatEvent `json:"entry"`
}
