package domain

// HandoffStatus enumerates lifecycle states for a handoff session.
type HandoffStatus string

const (
	HandoffNotInitialized HandoffStatus = "NOT_INITIALIZED"
	HandoffInitializing   HandoffStatus = "INITIALIZING"
	HandoffInitialized    HandoffStatus = "INITIALIZED"
	HandoffFailed         HandoffStatus = "FAILED"
)

// HandoffSession is the live session owned by the orchestrator. At most one
// per widget instance; reset wholesale on end or terminal provider event.
type HandoffSession struct {
	Status         HandoffStatus
	AuthToken      string
	AgentName      string
	ConversationID string
}

// Active reports whether the session holds a usable provider conversation.
func (s HandoffSession) Active() bool {
	return s.Status == HandoffInitialized && s.ConversationID != ""
}
