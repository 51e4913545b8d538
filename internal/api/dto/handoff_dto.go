package dto

import (
	"github.com/spec-kit/handoff-service/internal/domain"
)

// HistoryMessage is one prior AI-conversation message supplied on init.
type HistoryMessage struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// InitializeHandoffRequest payload.
type InitializeHandoffRequest struct {
	OrgID          string           `json:"org_id"`
	AgentID        string           `json:"agent_id"`
	SignedUserData string           `json:"signed_user_data"`
	Messages       []HistoryMessage `json:"messages"`
}

// InitializeHandoffResponse payload. The bearer token travels in the
// X-Handoff-Token response header, not the body.
type InitializeHandoffResponse struct {
	ConversationID string               `json:"conversation_id"`
	SessionID      string               `json:"session_id"`
	Status         domain.HandoffStatus `json:"status"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// TimelineEntry response shape for one merged timeline event.
type TimelineEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Author    string `json:"author,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// FromChatEvent converts a domain event for responses.
func FromChatEvent(event domain.ChatEvent) TimelineEntry {
	return TimelineEntry{
		ID:        event.ID,
		Kind:      string(event.Kind),
		Author:    event.Author,
		AgentName: event.AgentName,
		Content:   event.Content,
		Timestamp: event.Timestamp,
	}
}
