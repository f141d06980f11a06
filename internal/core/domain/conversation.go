package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is a known message role.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// Session represents one chat conversation.
type Session struct {
	// ID is the unique identifier for the session.
	ID string

	// Title is a short display name, usually derived from the first
	// user message.
	Title string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a session with a fresh ID.
func NewSession(title string) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Message represents a single turn in a conversation.
// Turn indices are dense and unique within a session: the store assigns
// the next index on insert.
type Message struct {
	// ID is the unique identifier for the message.
	ID string

	// SessionID links to the owning Session.
	SessionID string

	// TurnIndex is the zero-based position within the session.
	TurnIndex int

	// Role is RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string

	// Metadata carries message-specific data, such as the chunk IDs
	// cited by an assistant answer.
	Metadata map[string]any

	CreatedAt time.Time
}
