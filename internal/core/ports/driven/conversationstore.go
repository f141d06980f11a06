package driven

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// ConversationStore persists chat sessions and their messages.
type ConversationStore interface {
	// SaveSession stores or updates a session.
	SaveSession(ctx context.Context, session domain.Session) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage adds a message to a session, assigning the next
	// turn index. The assigned index is written back to msg.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// Messages returns a session's messages in turn order. A positive
	// limit returns only the most recent messages, still in
	// chronological order.
	Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// LastTurnIndex returns the highest turn index in a session, or -1
	// for an empty session.
	LastTurnIndex(ctx context.Context, sessionID string) (int, error)
}
