package domain

import "time"

// SessionRecord is the persisted audit row for a handoff session.
type SessionRecord struct {
	ID             string
	OrgID          string
	AgentID        string
	Provider       ProviderType
	ConversationID string
	Status         HandoffStatus
	AgentName      *string
	StartedAt      time.Time
	EndedAt        *time.Time
}

// TranscriptEvent is a persisted timeline entry belonging to a session.
type TranscriptEvent struct {
	ID             string
	SessionID      string
	Kind           ChatEventKind
	Author         string
	AgentName      *string
	Body           string
	EventTimestamp int64
	CreatedAt      time.Time
}
