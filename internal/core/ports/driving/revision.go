package driving

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// RevisionService manages the propose / review / apply workflow for
// SOP document changes.
type RevisionService interface {
	// Propose asks the LLM to revise a document according to the
	// instruction and persists the resulting workflow of proposed
	// changes.
	Propose(ctx context.Context, documentID, instruction string) (*domain.ChangeWorkflow, error)

	// Diff compares two .docx files and persists a workflow of the
	// detected changes for review.
	Diff(ctx context.Context, originalPath, modifiedPath string) (*domain.ChangeWorkflow, error)

	// Get retrieves a workflow with its changes.
	Get(ctx context.Context, workflowID string) (*domain.ChangeWorkflow, error)

	// List returns all workflows, most recent first.
	List(ctx context.Context) ([]domain.ChangeWorkflow, error)

	// Accept marks a proposed change as accepted.
	Accept(ctx context.Context, workflowID, changeID string) error

	// Reject marks a proposed change as rejected.
	Reject(ctx context.Context, workflowID, changeID string) error

	// Apply writes all accepted changes to the document file, marking
	// each change applied or failed. When every change has been
	// reviewed the workflow is completed. outPath may be empty to
	// edit the document in place.
	Apply(ctx context.Context, workflowID, outPath string) (*ApplyReport, error)

	// Cancel abandons a workflow.
	Cancel(ctx context.Context, workflowID string) error
}

// ApplyReport summarises an apply pass over a workflow.
type ApplyReport struct {
	// Applied is the number of changes written to the document.
	Applied int

	// Failed is the number of accepted changes that could not be
	// written.
	Failed int

	// Remaining is the number of changes still awaiting review.
	Remaining int

	// OutPath is the path the revised document was saved to.
	OutPath string
}
