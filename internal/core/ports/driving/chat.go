package driving

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// ChatService answers questions about the indexed SOP corpus with
// retrieval-augmented generation and persistent conversation history.
type ChatService interface {
	// Ask appends the question to the session, retrieves context,
	// queries the LLM and appends and returns the assistant answer.
	// An empty sessionID starts a new session.
	Ask(ctx context.Context, sessionID, question string) (*Answer, error)

	// History returns a session's messages in turn order.
	History(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Sessions lists stored sessions, most recently updated first.
	Sessions(ctx context.Context) ([]domain.Session, error)

	// ClearSession deletes a session and its history.
	ClearSession(ctx context.Context, sessionID string) error
}

// Answer is the result of one chat turn.
type Answer struct {
	// SessionID identifies the (possibly new) session.
	SessionID string

	// Text is the assistant's reply.
	Text string

	// Citations are the retrieval results the answer was grounded on.
	Citations []domain.SearchResult
}
