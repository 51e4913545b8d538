package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// salesforceStrategy adapts Salesforce Live Agent (Chasitor REST). Events
// arrive via the polling bridge and already carry epoch-millis timestamps.
type salesforceStrategy struct {
	cfg domain.HandoffConfiguration
}

type salesforceTranscriptLine struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type salesforceEventPayload struct {
	Message struct {
		Name      string `json:"name"`
		Text      string `json:"text"`
		AgentID   string `json:"agentId"`
		Timestamp int64  `json:"timestamp"`
	} `json:"message"`
}

func (s *salesforceStrategy) Provider() domain.ProviderType {
	return domain.ProviderSalesforce
}

func (s *salesforceStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []ProviderMessage {
	// Chasitor init accepts prior history as visitor transcript lines.
	out := make([]ProviderMessage, 0, len(messages))
	for _, msg := range messages {
		lineType := "Agent"
		if msg.Author == domain.AuthorUser {
			lineType = "Chasitor"
		}
		out = append(out, salesforceTranscriptLine{Type: lineType, Text: msg.Content})
	}
	return out
}

func (s *salesforceStrategy) HandleChatEvent(raw RawEvent) Classification {
	switch raw.Type {
	case "ChatMessage":
		var payload salesforceEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		if payload.Message.Timestamp <= 0 {
			return Classification{}
		}
		name := strings.TrimSpace(payload.Message.Name)
		return Classification{
			AgentName: name,
			Event: &domain.ChatEvent{
				ID:        raw.ID,
				Kind:      domain.EventHandoffMessage,
				Author:    "agent",
				AgentName: name,
				Content:   payload.Message.Text,
				Timestamp: payload.Message.Timestamp,
			},
		}
	case "ChasitorChatMessage":
		// Echo of the end-user's own message.
		return Classification{}
	case "ChatEstablished":
		var payload salesforceEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		if payload.Message.Timestamp <= 0 {
			return Classification{}
		}
		name := strings.TrimSpace(payload.Message.Name)
		return Classification{
			AgentName: name,
			Event: &domain.ChatEvent{
				ID:        raw.ID,
				Kind:      domain.EventChatEstablished,
				AgentName: name,
				Timestamp: payload.Message.Timestamp,
			},
		}
	case "ChatEnded", "ChatRequestFail":
		var payload salesforceEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		ts := payload.Message.Timestamp
		if ts <= 0 {
			// Termination must reach the session even without a timestamp.
			ts = time.Now().UnixMilli()
		}
		return Classification{Event: &domain.ChatEvent{
			ID:        raw.ID,
			Kind:      domain.EventChatEnded,
			Timestamp: ts,
		}}
	default:
		return Classification{}
	}
}

func (s *salesforceStrategy) MessagesEndpoint(conversationID string) string {
	return fmt.Sprintf("%s/chat/rest/Chasitor/ChatMessage", s.cfg.ChatHostURL)
}

func (s *salesforceStrategy) ConversationsEndpoint() string {
	return fmt.Sprintf("%s/chat/rest/Chasitor/ChasitorInit", s.cfg.ChatHostURL)
}
