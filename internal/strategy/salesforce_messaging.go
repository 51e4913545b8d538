package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// salesforceMessagingStrategy adapts Salesforce Messaging for In-App and Web,
// the successor API to Live Agent. Timestamps arrive as ISO-8601 strings.
type salesforceMessagingStrategy struct {
	cfg domain.HandoffConfiguration
}

type messagingEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type messagingEventPayload struct {
	ConversationEntry struct {
		ID     string `json:"identifier"`
		Sender struct {
			Role        string `json:"role"`
			DisplayName string `json:"displayName"`
		} `json:"sender"`
		EntryType      string `json:"entryType"`
		Text           string `json:"text"`
		TranscriptedAt string `json:"transcriptedAt"`
	} `json:"conversationEntry"`
}

func (s *salesforceMessagingStrategy) Provider() domain.ProviderType {
	return domain.ProviderSalesforceMessaging
}

func (s *salesforceMessagingStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []ProviderMessage {
	out := make([]ProviderMessage, 0, len(messages))
	for _, msg := range messages {
		role := "Chatbot"
		if msg.Author == domain.AuthorUser {
			role = "EndUser"
		}
		out = append(out, messagingEntry{Role: role, Text: msg.Content})
	}
	return out
}

func (s *salesforceMessagingStrategy) HandleChatEvent(raw RawEvent) Classification {
	var payload messagingEventPayload
	if err := json.Unmarshal(raw.Payload, &payload); err != nil {
		return Classification{}
	}
	entry := payload.ConversationEntry
	ts := parseISOMillis(entry.TranscriptedAt)

	switch raw.Type {
	case "CONVERSATION_MESSAGE":
		if entry.Sender.Role == "EndUser" {
			// Echo of the end-user's own message.
			return Classification{}
		}
		if ts <= 0 {
			return Classification{}
		}
		name := strings.TrimSpace(entry.Sender.DisplayName)
		return Classification{
			AgentName: name,
			Event: &domain.ChatEvent{
				ID:        entry.ID,
				Kind:      domain.EventHandoffMessage,
				Author:    strings.ToLower(entry.Sender.Role),
				AgentName: name,
				Content:   entry.Text,
				Timestamp: ts,
			},
		}
	case "CONVERSATION_PARTICIPANT_CHANGED":
		if ts <= 0 {
			return Classification{}
		}
		name := strings.TrimSpace(entry.Sender.DisplayName)
		return Classification{
			AgentName: name,
			Event: &domain.ChatEvent{
				ID:        entry.ID,
				Kind:      domain.EventChatEstablished,
				AgentName: name,
				Timestamp: ts,
			},
		}
	case "CONVERSATION_CLOSED":
		if ts <= 0 {
			// Termination must reach the session even without a timestamp.
			ts = time.Now().UnixMilli()
		}
		return Classification{Event: &domain.ChatEvent{
			ID:        entry.ID,
			Kind:      domain.EventChatEnded,
			Timestamp: ts,
		}}
	default:
		return Classification{}
	}
}

func (s *salesforceMessagingStrategy) MessagesEndpoint(conversationID string) string {
	return fmt.Sprintf("%s/iamessage/api/v2/conversation/%s/message", s.cfg.ChatHostURL, conversationID)
}

func (s *salesforceMessagingStrategy) ConversationsEndpoint() string {
	return fmt.Sprintf("%s/iamessage/api/v2/conversation", s.cfg.ChatHostURL)
}
