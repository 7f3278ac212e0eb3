package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SessionTitleLimit is the number of runes of the first question used as an
// auto-created session's title.
const SessionTitleLimit = 60

// ChatSession groups a user's conversation and the content uploaded into it.
type ChatSession struct {
	ID           string
	UserID       string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatMessage is one persisted turn of a session.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Images    []string
	CreatedAt time.Time
}

// Turn converts the message into prompt history.
func (m *ChatMessage) Turn() ConversationTurn {
	return ConversationTurn{Role: m.Role, Content: m.Content}
}

// NewChatSession creates a new ChatSession instance
func NewChatSession(id, userID, title string, now time.Time) *ChatSession {
	return &ChatSession{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TitleFromQuestion derives a session title from the question that opened it.
func TitleFromQuestion(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return "New chat"
	}
	if utf8.RuneCountInString(q) <= SessionTitleLimit {
		return q
	}
	runes := []rune(q)
	return string(runes[:SessionTitleLimit]) + "…"
}

// ValidateChatSession validates a ChatSession instance
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("chat session cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("chat session ID is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("chat session UserID is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("chat session Title is required")
	}
	return nil
}

// ValidateChatMessage validates a ChatMessage instance
func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("chat message cannot be nil")
	}
	if m.ID == "" || m.SessionID == "" {
		return fmt.Errorf("chat message ID and SessionID are required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("chat message Role is invalid: %s", m.Role)
	}
	return nil
}
