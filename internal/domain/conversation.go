package domain

import "fmt"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ConversationTurn is one message of prior dialogue fed back into the prompt.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Label is the speaker prefix used when rendering the turn as a transcript line.
func (t ConversationTurn) Label() string {
	if t.Role == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func (t ConversationTurn) String() string {
	return fmt.Sprintf("%s: %s", t.Label(), t.Content)
}
