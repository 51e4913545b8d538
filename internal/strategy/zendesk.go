package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

const zendeskAPIHost = "https://api.smooch.io"

// zendeskStrategy adapts Zendesk Sunshine Conversations. Sunshine delivers
// timestamps as epoch seconds, normalized here to epoch millis.
type zendeskStrategy struct {
	cfg domain.HandoffConfiguration
}

type zendeskAuthor struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName,omitempty"`
}

type zendeskContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type zendeskMessage struct {
	Author  zendeskAuthor  `json:"author"`
	Content zendeskContent `json:"content"`
}

type zendeskEventPayload struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	Message struct {
		ID       string         `json:"id"`
		Received float64        `json:"received"`
		Content  zendeskContent `json:"content"`
		Author   zendeskAuthor  `json:"author"`
	} `json:"message"`
}

func (s *zendeskStrategy) Provider() domain.ProviderType {
	return domain.ProviderZendesk
}

func (s *zendeskStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []ProviderMessage {
	out := make([]ProviderMessage, 0, len(messages))
	for _, msg := range messages {
		authorType := "business"
		if msg.Author == domain.AuthorUser {
			authorType = "user"
		}
		out = append(out, zendeskMessage{
			Author:  zendeskAuthor{Type: authorType},
			Content: zendeskContent{Type: "text", Text: msg.Content},
		})
	}
	return out
}

func (s *zendeskStrategy) HandleChatEvent(raw RawEvent) Classification {
	switch raw.Type {
	case "conversation:message":
		var payload zendeskEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		author := payload.Message.Author
		switch author.Type {
		case "user":
			// Provider echo of the end-user's own message; already shown locally.
			return Classification{}
		case "business":
			ts := int64(payload.Message.Received * 1000)
			if ts <= 0 {
				return Classification{}
			}
			return Classification{
				AgentName: author.DisplayName,
				Event: &domain.ChatEvent{
					ID:        payload.Message.ID,
					Kind:      domain.EventHandoffMessage,
					Author:    author.Type,
					AgentName: author.DisplayName,
					Content:   payload.Message.Content.Text,
					Timestamp: ts,
				},
			}
		default:
			return Classification{}
		}
	case "conversation:ended":
		var payload zendeskEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		ts := int64(payload.Message.Received * 1000)
		if ts <= 0 {
			// Termination must reach the session even when the payload
			// carries no timestamp; fall back to arrival time.
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

func (s *zendeskStrategy) MessagesEndpoint(conversationID string) string {
	return fmt.Sprintf("%s/v2/apps/%s/conversations/%s/messages", zendeskAPIHost, s.cfg.AppID, conversationID)
}

func (s *zendeskStrategy) ConversationsEndpoint() string {
	return fmt.Sprintf("%s/v2/apps/%s/conversations", zendeskAPIHost, s.cfg.AppID)
}
