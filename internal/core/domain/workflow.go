package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus tracks the lifecycle of a change workflow.
type WorkflowStatus string

const (
	// WorkflowActive means the workflow accepts review actions.
	WorkflowActive WorkflowStatus = "active"

	// WorkflowCompleted means every change was reviewed and accepted
	// changes were applied.
	WorkflowCompleted WorkflowStatus = "completed"

	// WorkflowCancelled means the workflow was abandoned.
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// Open reports whether the workflow still accepts review actions.
func (s WorkflowStatus) Open() bool {
	return s == WorkflowActive
}

// ChangeWorkflow groups the proposed changes for one revision of a
// document and tracks their review state.
type ChangeWorkflow struct {
	// ID is the unique identifier for the workflow.
	ID string

	// DocumentID identifies the document being revised.
	DocumentID string

	// Instruction is the revision request that produced the workflow.
	Instruction string

	// Changes are the proposed edits, in proposal order.
	Changes []DocumentChange

	// Status is the workflow lifecycle state.
	Status WorkflowStatus

	// Metadata contains workflow-specific key-value pairs.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkflow creates an active workflow for a document.
func NewWorkflow(documentID, instruction string) *ChangeWorkflow {
	now := time.Now().UTC()
	return &ChangeWorkflow{
		ID:          uuid.New().String(),
		DocumentID:  documentID,
		Instruction: instruction,
		Status:      WorkflowActive,
		Metadata:    make(map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddChange appends a proposed change to the workflow.
func (w *ChangeWorkflow) AddChange(change DocumentChange) {
	change.WorkflowID = w.ID
	w.Changes = append(w.Changes, change)
	w.UpdatedAt = time.Now().UTC()
}

// ChangeByID returns the change with the given ID, or nil.
func (w *ChangeWorkflow) ChangeByID(changeID string) *DocumentChange {
	for i := range w.Changes {
		if w.Changes[i].ID == changeID {
			return &w.Changes[i]
		}
	}
	return nil
}

// UpdateStatus transitions a change to a new status, enforcing the
// review state machine. Returns ErrNotFound if the change is not in
// this workflow and ErrInvalidTransition if the move is not allowed.
func (w *ChangeWorkflow) UpdateStatus(changeID string, next ChangeStatus) error {
	change := w.ChangeByID(changeID)
	if change == nil {
		return ErrNotFound
	}
	if !change.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	change.Status = next
	change.UpdatedAt = time.Now().UTC()
	w.UpdatedAt = change.UpdatedAt
	return nil
}

// ChangesByStatus returns the changes currently in the given status.
func (w *ChangeWorkflow) ChangesByStatus(status ChangeStatus) []DocumentChange {
	var out []DocumentChange
	for _, c := range w.Changes {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// Proposed returns changes still awaiting review.
func (w *ChangeWorkflow) Proposed() []DocumentChange {
	return w.ChangesByStatus(StatusProposed)
}

// Accepted returns changes approved but not yet applied.
func (w *ChangeWorkflow) Accepted() []DocumentChange {
	return w.ChangesByStatus(StatusAccepted)
}

// Rejected returns declined changes.
func (w *ChangeWorkflow) Rejected() []DocumentChange {
	return w.ChangesByStatus(StatusRejected)
}

// AllReviewed reports whether no change remains in the proposed state.
func (w *ChangeWorkflow) AllReviewed() bool {
	for _, c := range w.Changes {
		if !c.Status.Reviewed() {
			return false
		}
	}
	return true
}
