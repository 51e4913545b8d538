package domain

// ChatEventKind enumerates normalized event variants in a conversation timeline.
type ChatEventKind string

const (
	EventBotMessage       ChatEventKind = "BOT_MESSAGE"
	EventUserMessage      ChatEventKind = "USER_MESSAGE"
	EventHandoffMessage   ChatEventKind = "HANDOFF_MESSAGE"
	EventChatEstablished  ChatEventKind = "CHAT_ESTABLISHED"
	EventChatEnded        ChatEventKind = "CHAT_ENDED"
	EventSimulatedMessage ChatEventKind = "SIMULATED_MESSAGE"
)

// ChatEvent is a provider-normalized timeline entry. Timestamp is epoch
// millis and is the sole cross-source ordering key; events without one are
// dropped before the merge.
type ChatEvent struct {
	ID        string        `json:"id"`
	Kind      ChatEventKind `json:"kind"`
	Author    string        `json:"author,omitempty"`
	AgentName string        `json:"agent_name,omitempty"`
	Content   string        `json:"content,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// HasTimestamp reports whether the event carries a usable ordering key.
func (e ChatEvent) HasTimestamp() bool {
	return e.Timestamp > 0
}
