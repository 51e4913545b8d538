package domain

// MessageAuthor indicates who authored a chat message.
type MessageAuthor string

const (
	AuthorUser  MessageAuthor = "USER"
	AuthorBot   MessageAuthor = "AGENT"
	AuthorHuman MessageAuthor = "HUMAN_AGENT"
)

// ChatMessage is the internal shape of a message exchanged with the AI
// conversation before any provider formatting is applied.
type ChatMessage struct {
	Author    MessageAuthor `json:"author"`
	Content   string        `json:"content"`
	Timestamp int64         `json:"timestamp"`
}

// UserProfile carries verified end-user identity passed to providers on
// session creation.
type UserProfile struct {
	ID              string            `json:"id"`
	Email           string            `json:"email,omitempty"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	IsAuthenticated bool              `json:"is_authenticated"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DisplayName returns a printable name for provider payloads.
func (u UserProfile) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	default:
		return "Anonymous"
	}
}
