package strategy

import (
	"encoding/json"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// RawEvent is an unparsed provider push event as delivered by a transport.
type RawEvent struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// ProviderMessage is a provider wire-shape message. Each strategy returns its
// own typed structs; transports marshal them as-is.
type ProviderMessage any

// Classification is the outcome of classifying a raw provider event. A nil
// Event means the raw event must be silently dropped. AgentName is non-empty
// only when the event identifies a human agent by display name.
type Classification struct {
	AgentName string
	Event     *domain.ChatEvent
}

// Strategy adapts one live-chat provider: pure formatting and parsing, no I/O.
type Strategy interface {
	Provider() domain.ProviderType
	FormatMessages(messages []domain.ChatMessage, conversationID string) []ProviderMessage
	HandleChatEvent(raw RawEvent) Classification
	MessagesEndpoint(conversationID string) string
	ConversationsEndpoint() string
}

// New maps a configuration type tag to a Strategy. Unknown or absent types
// return nil: that is the documented "no handoff configured" path, not an
// error, and this function never panics.
func New(providerType string, cfg *domain.HandoffConfiguration) Strategy {
	if providerType == "" || cfg == nil {
		return nil
	}
	switch domain.ProviderType(providerType) {
	case domain.ProviderZendesk:
		return &zendeskStrategy{cfg: *cfg}
	case domain.ProviderFront:
		return &frontStrategy{cfg: *cfg}
	case domain.ProviderSalesforce:
		return &salesforceStrategy{cfg: *cfg}
	case domain.ProviderSalesforceMessaging:
		return &salesforceMessagingStrategy{cfg: *cfg}
	default:
		return nil
	}
}
