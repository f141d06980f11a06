package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies an edit to a Word document.
type ChangeType string

const (
	// ChangeTextUpdate replaces the text of a paragraph.
	ChangeTextUpdate ChangeType = "text_update"

	// ChangeParagraphInsert inserts a new paragraph.
	ChangeParagraphInsert ChangeType = "paragraph_insert"

	// ChangeParagraphDelete removes an existing paragraph.
	ChangeParagraphDelete ChangeType = "paragraph_delete"

	// ChangeSectionReplace replaces all content following a heading,
	// up to the next heading of the same or higher level.
	ChangeSectionReplace ChangeType = "section_replace"

	// ChangeTableCellUpdate replaces the text in a table cell.
	ChangeTableCellUpdate ChangeType = "table_cell_update"
)

// Valid reports whether t is a known change type.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeTextUpdate, ChangeParagraphInsert, ChangeParagraphDelete,
		ChangeSectionReplace, ChangeTableCellUpdate:
		return true
	}
	return false
}

// ChangeStatus tracks a proposed change through the review workflow.
type ChangeStatus string

const (
	// StatusProposed means the change awaits review.
	StatusProposed ChangeStatus = "proposed"

	// StatusAccepted means the reviewer approved the change but it has
	// not been written to the document yet.
	StatusAccepted ChangeStatus = "accepted"

	// StatusRejected means the reviewer declined the change.
	StatusRejected ChangeStatus = "rejected"

	// StatusApplied means the change was accepted and successfully
	// written to the document.
	StatusApplied ChangeStatus = "applied"

	// StatusFailed means applying the change to the document failed.
	StatusFailed ChangeStatus = "failed"
)

// Reviewed reports whether the change has left the proposed state.
func (s ChangeStatus) Reviewed() bool {
	return s != StatusProposed
}

// Terminal reports whether no further transitions are allowed.
func (s ChangeStatus) Terminal() bool {
	return s == StatusRejected || s == StatusApplied || s == StatusFailed
}

// CanTransitionTo reports whether the workflow permits moving from s to
// next. Proposed changes may be accepted or rejected; accepted changes
// may be applied or failed. Terminal states allow nothing.
func (s ChangeStatus) CanTransitionTo(next ChangeStatus) bool {
	switch s {
	case StatusProposed:
		return next == StatusAccepted || next == StatusRejected
	case StatusAccepted:
		return next == StatusApplied || next == StatusFailed
	default:
		return false
	}
}

// ChangeLocation identifies where in a document a change applies.
// Exactly one of Paragraph, Table or Section is set, matching Kind.
type ChangeLocation struct {
	// Kind is "paragraph", "table" or "section".
	Kind string `json:"kind"`

	Paragraph *ParagraphLocation `json:"paragraph,omitempty"`
	Table     *TableLocation     `json:"table,omitempty"`
	Section   *SectionLocation   `json:"section,omitempty"`
}

// ParagraphLocation addresses a paragraph by document order.
type ParagraphLocation struct {
	// Index is the zero-based paragraph index.
	Index int `json:"index"`

	// Run optionally addresses a run within the paragraph (-1 = whole
	// paragraph).
	Run int `json:"run"`
}

// TableLocation addresses a cell within a table.
type TableLocation struct {
	Table  int `json:"table"`
	Row    int `json:"row"`
	Column int `json:"column"`
}

// SectionLocation addresses the content under a heading.
type SectionLocation struct {
	// HeadingText is matched against paragraph text.
	HeadingText string `json:"heading_text"`

	// HeadingStyle optionally restricts matching to a heading style
	// (e.g. "Heading 1").
	HeadingStyle string `json:"heading_style,omitempty"`
}

// ParagraphAt builds a paragraph location for a whole paragraph.
func ParagraphAt(index int) ChangeLocation {
	return ChangeLocation{
		Kind:      "paragraph",
		Paragraph: &ParagraphLocation{Index: index, Run: -1},
	}
}

// CellAt builds a table cell location.
func CellAt(table, row, column int) ChangeLocation {
	return ChangeLocation{
		Kind:  "table",
		Table: &TableLocation{Table: table, Row: row, Column: column},
	}
}

// SectionUnder builds a section location for the given heading.
func SectionUnder(headingText, headingStyle string) ChangeLocation {
	return ChangeLocation{
		Kind:    "section",
		Section: &SectionLocation{HeadingText: headingText, HeadingStyle: headingStyle},
	}
}

// DocumentChange represents a single proposed or applied edit to a
// document. For text updates OldValue and NewValue hold paragraph text;
// for inserts OldValue is empty; for deletes NewValue is empty; for
// section replacements NewValue holds newline-separated paragraphs.
type DocumentChange struct {
	// ID is the unique identifier for the change.
	ID string

	// WorkflowID links to the owning ChangeWorkflow.
	WorkflowID string

	// DocumentID identifies the document this change pertains to.
	DocumentID string

	// Type is the kind of edit.
	Type ChangeType

	// Location specifies where the change applies.
	Location ChangeLocation

	OldValue string
	NewValue string

	// Description is a human-readable summary of the change.
	Description string

	// Status tracks the change through the review workflow.
	Status ChangeStatus

	// Source records where the change came from ("llm_suggestion",
	// "change_detector" or "user_edit").
	Source string

	// Error holds the failure reason when Status is StatusFailed.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChange creates a proposed change with a fresh ID.
func NewChange(documentID string, t ChangeType, loc ChangeLocation) DocumentChange {
	now := time.Now().UTC()
	return DocumentChange{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Type:       t,
		Location:   loc,
		Status:     StatusProposed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
