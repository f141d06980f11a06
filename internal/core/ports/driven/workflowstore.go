package driven

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// WorkflowStore persists change workflows and their proposed changes.
type WorkflowStore interface {
	// SaveWorkflow stores or updates a workflow together with all of
	// its changes.
	SaveWorkflow(ctx context.Context, workflow *domain.ChangeWorkflow) error

	// GetWorkflow retrieves a workflow by ID with its changes hydrated
	// in proposal order.
	GetWorkflow(ctx context.Context, id string) (*domain.ChangeWorkflow, error)

	// ListWorkflows returns all workflows, most recently updated first,
	// without their changes hydrated.
	ListWorkflows(ctx context.Context) ([]domain.ChangeWorkflow, error)

	// ListByDocument returns workflows for a document, most recently
	// updated first, without their changes hydrated.
	ListByDocument(ctx context.Context, documentID string) ([]domain.ChangeWorkflow, error)

	// UpdateChange persists the current state of a single change.
	UpdateChange(ctx context.Context, change *domain.DocumentChange) error

	// DeleteWorkflow removes a workflow and its changes.
	DeleteWorkflow(ctx context.Context, id string) error
}
