package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

const frontAPIHost = "https://api2.frontapp.com"

// frontStrategy adapts Front. Front delivers ISO-8601 timestamps, normalized
// here to epoch millis.
type frontStrategy struct {
	cfg domain.HandoffConfiguration
}

type frontMessage struct {
	Sender frontSender `json:"sender"`
	Body   string      `json:"body"`
}

type frontSender struct {
	Handle string `json:"handle"`
	Name   string `json:"name,omitempty"`
}

type frontEventPayload struct {
	EmittedAt    string `json:"emitted_at"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	Message struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
		Body      string `json:"body"`
		Author    struct {
			IsTeammate bool   `json:"is_teammate"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
		} `json:"author"`
	} `json:"message"`
}

func (s *frontStrategy) Provider() domain.ProviderType {
	return domain.ProviderFront
}

func (s *frontStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []ProviderMessage {
	out := make([]ProviderMessage, 0, len(messages))
	for _, msg := range messages {
		handle := "ai-agent"
		if msg.Author == domain.AuthorUser {
			handle = conversationID
		}
		out = append(out, frontMessage{
			Sender: frontSender{Handle: handle},
			Body:   msg.Content,
		})
	}
	return out
}

func (s *frontStrategy) HandleChatEvent(raw RawEvent) Classification {
	switch raw.Type {
	case "message", "out_reply":
		var payload frontEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		if !payload.Message.Author.IsTeammate {
			// Echo of the end-user's own message.
			return Classification{}
		}
		ts := parseISOMillis(payload.Message.CreatedAt)
		if ts <= 0 {
			return Classification{}
		}
		name := strings.TrimSpace(payload.Message.Author.FirstName + " " + payload.Message.Author.LastName)
		return Classification{
			AgentName: name,
			Event: &domain.ChatEvent{
				ID:        payload.Message.ID,
				Kind:      domain.EventHandoffMessage,
				Author:    "teammate",
				AgentName: name,
				Content:   payload.Message.Body,
				Timestamp: ts,
			},
		}
	case "conversation_archived":
		var payload frontEventPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Classification{}
		}
		ts := parseISOMillis(payload.EmittedAt)
		if ts <= 0 {
			// Termination must reach the session even when emitted_at is
			// missing or malformed; fall back to arrival time.
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

func (s *frontStrategy) MessagesEndpoint(conversationID string) string {
	return fmt.Sprintf("%s/channels/%s/incoming_messages", frontAPIHost, s.cfg.AppID)
}

func (s *frontStrategy) ConversationsEndpoint() string {
	return fmt.Sprintf("%s/channels/%s/incoming_messages", frontAPIHost, s.cfg.AppID)
}

func parseISOMillis(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0
	}
	return parsed.UnixMilli()
}
