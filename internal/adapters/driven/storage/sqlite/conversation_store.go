package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// SaveSession stores or updates a session.
func (s *conversationStore) SaveSession(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		return domain.ErrInvalidInput
	}

	session.CreatedAt = timeOrNow(session.CreatedAt)
	session.UpdatedAt = timeOrNow(session.UpdatedAt)

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at
	`, session.ID, session.Title, session.CreatedAt, session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *conversationStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	var session domain.Session
	if err := row.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	return &session, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *conversationStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session //nolint:prealloc // size unknown from query
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *conversationStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// AppendMessage adds a message to a session, assigning the next turn
// index. The insert and the index assignment run in one transaction so
// concurrent appends cannot claim the same turn.
func (s *conversationStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.SessionID == "" || !domain.ValidRole(msg.Role) {
		return domain.ErrInvalidInput
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling message metadata: %w", err)
	}

	msg.CreatedAt = timeOrNow(msg.CreatedAt)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var nextTurn int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(turn_index), -1) + 1 FROM messages WHERE session_id = ?", msg.SessionID)
	if err := row.Scan(&nextTurn); err != nil {
		return fmt.Errorf("computing turn index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, turn_index, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, nextTurn, msg.Role, msg.Content,
		string(metadataJSON), msg.CreatedAt); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	// Appending bumps the session's recency
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", msg.CreatedAt, msg.SessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	msg.TurnIndex = nextTurn
	return nil
}

// Messages returns a session's messages in turn order. A positive
// limit returns only the most recent messages.
func (s *conversationStore) Messages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, turn_index, role, content, metadata, created_at
		FROM messages WHERE session_id = ?
		ORDER BY turn_index`
	args := []any{sessionID}

	if limit > 0 {
		// Take the tail, then restore chronological order
		query = `
			SELECT id, session_id, turn_index, role, content, metadata, created_at
			FROM (
				SELECT id, session_id, turn_index, role, content, metadata, created_at
				FROM messages WHERE session_id = ?
				ORDER BY turn_index DESC LIMIT ?
			) ORDER BY turn_index`
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var msg domain.Message
		var metadataJSON string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.TurnIndex, &msg.Role,
			&msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// LastTurnIndex returns the highest turn index in a session, or -1 for
// an empty session.
func (s *conversationStore) LastTurnIndex(ctx context.Context, sessionID string) (int, error) {
	var last int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(turn_index), -1) FROM messages WHERE session_id = ?", sessionID)
	if err := row.Scan(&last); err != nil {
		return -1, fmt.Errorf("querying last turn: %w", err)
	}
	return last, nil
}
