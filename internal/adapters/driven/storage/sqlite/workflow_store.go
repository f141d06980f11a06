package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// workflowStore implements driven.WorkflowStore.
type workflowStore struct {
	store *Store
}

var _ driven.WorkflowStore = (*workflowStore)(nil)

// SaveWorkflow stores or updates a workflow together with all of its
// changes. Change rows keep their proposal order via the position
// column.
func (s *workflowStore) SaveWorkflow(ctx context.Context, workflow *domain.ChangeWorkflow) error {
	if workflow == nil || workflow.ID == "" {
		return domain.ErrInvalidInput
	}

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling workflow metadata: %w", err)
	}

	workflow.CreatedAt = timeOrNow(workflow.CreatedAt)
	workflow.UpdatedAt = timeOrNow(workflow.UpdatedAt)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, document_id, instruction, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			instruction = excluded.instruction,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, workflow.ID, workflow.DocumentID, workflow.Instruction, string(workflow.Status),
		string(metadataJSON), workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving workflow: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO changes (id, workflow_id, document_id, change_type, location,
			old_value, new_value, description, status, source, error, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			change_type = excluded.change_type,
			location = excluded.location,
			old_value = excluded.old_value,
			new_value = excluded.new_value,
			description = excluded.description,
			status = excluded.status,
			source = excluded.source,
			error = excluded.error,
			position = excluded.position,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing change statement: %w", err)
	}
	defer stmt.Close()

	for i := range workflow.Changes {
		change := &workflow.Changes[i]

		locationJSON, err := json.Marshal(change.Location)
		if err != nil {
			return fmt.Errorf("marshalling change location: %w", err)
		}

		change.CreatedAt = timeOrNow(change.CreatedAt)
		change.UpdatedAt = timeOrNow(change.UpdatedAt)

		if _, err := stmt.ExecContext(ctx, change.ID, workflow.ID, change.DocumentID,
			string(change.Type), string(locationJSON), change.OldValue, change.NewValue,
			change.Description, string(change.Status), change.Source, change.Error,
			i, change.CreatedAt, change.UpdatedAt); err != nil {
			return fmt.Errorf("saving change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const workflowColumns = "id, document_id, instruction, status, metadata, created_at, updated_at"

// GetWorkflow retrieves a workflow by ID with its changes hydrated.
func (s *workflowStore) GetWorkflow(ctx context.Context, id string) (*domain.ChangeWorkflow, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = ?", id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		return nil, err
	}

	changes, err := s.changesForWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	workflow.Changes = changes

	return workflow, nil
}

// ListWorkflows returns all workflows, most recently updated first.
func (s *workflowStore) ListWorkflows(ctx context.Context) ([]domain.ChangeWorkflow, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// ListByDocument returns workflows for a document, most recently
// updated first.
func (s *workflowStore) ListByDocument(ctx context.Context, documentID string) ([]domain.ChangeWorkflow, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE document_id = ? ORDER BY updated_at DESC", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// UpdateChange persists the current state of a single change.
func (s *workflowStore) UpdateChange(ctx context.Context, change *domain.DocumentChange) error {
	if change == nil || change.ID == "" {
		return domain.ErrInvalidInput
	}

	change.UpdatedAt = timeOrNow(change.UpdatedAt)

	result, err := s.store.db.ExecContext(ctx, `
		UPDATE changes SET status = ?, error = ?, new_value = ?, updated_at = ?
		WHERE id = ?
	`, string(change.Status), change.Error, change.NewValue, change.UpdatedAt, change.ID)
	if err != nil {
		return fmt.Errorf("updating change: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteWorkflow removes a workflow and its changes.
func (s *workflowStore) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	return nil
}

// changesForWorkflow loads a workflow's changes in proposal order.
func (s *workflowStore) changesForWorkflow(ctx context.Context, workflowID string) ([]domain.DocumentChange, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, workflow_id, document_id, change_type, location,
			old_value, new_value, description, status, source, error, created_at, updated_at
		FROM changes WHERE workflow_id = ?
		ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.DocumentChange //nolint:prealloc // size unknown from query
	for rows.Next() {
		var change domain.DocumentChange
		var changeType, status, locationJSON string
		if err := rows.Scan(&change.ID, &change.WorkflowID, &change.DocumentID,
			&changeType, &locationJSON, &change.OldValue, &change.NewValue,
			&change.Description, &status, &change.Source, &change.Error,
			&change.CreatedAt, &change.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}

		change.Type = domain.ChangeType(changeType)
		change.Status = domain.ChangeStatus(status)

		if err := json.Unmarshal([]byte(locationJSON), &change.Location); err != nil {
			return nil, fmt.Errorf("unmarshaling change location: %w", err)
		}

		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes: %w", err)
	}

	return changes, nil
}

// scanWorkflow scans a single workflow row.
func scanWorkflow(row *sql.Row) (*domain.ChangeWorkflow, error) {
	var workflow domain.ChangeWorkflow
	var status, metadataJSON string

	if err := row.Scan(&workflow.ID, &workflow.DocumentID, &workflow.Instruction,
		&status, &metadataJSON, &workflow.CreatedAt, &workflow.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning workflow: %w", err)
	}

	workflow.Status = domain.WorkflowStatus(status)

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling workflow metadata: %w", err)
		}
	}

	return &workflow, nil
}

// collectWorkflows scans all workflow rows.
func collectWorkflows(rows *sql.Rows) ([]domain.ChangeWorkflow, error) {
	var workflows []domain.ChangeWorkflow //nolint:prealloc // size unknown from query
	for rows.Next() {
		var workflow domain.ChangeWorkflow
		var status, metadataJSON string

		if err := rows.Scan(&workflow.ID, &workflow.DocumentID, &workflow.Instruction,
			&status, &metadataJSON, &workflow.CreatedAt, &workflow.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}

		workflow.Status = domain.WorkflowStatus(status)

		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &workflow.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling workflow metadata: %w", err)
			}
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflows: %w", err)
	}

	return workflows, nil
}
