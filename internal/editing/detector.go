package editing

import (
	"context"
	"fmt"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.ChangeDetector = (*Detector)(nil)

// Detector compares two Word documents paragraph by paragraph and
// emits the changes that turn the original into the modified version.
// Comparison is index-aligned: paragraphs at the same position are
// diffed, and extra paragraphs at the tail of either document become
// inserts or deletes.
type Detector struct{}

// NewDetector creates a change detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares the documents at the two paths and returns proposed
// changes describing the differences.
func (d *Detector) Detect(_ context.Context, originalPath, modifiedPath, documentID string) ([]domain.DocumentChange, error) {
	original, err := Open(originalPath)
	if err != nil {
		return nil, fmt.Errorf("open original: %w", err)
	}
	modified, err := Open(modifiedPath)
	if err != nil {
		return nil, fmt.Errorf("open modified: %w", err)
	}

	return DiffParagraphs(original.Paragraphs(), modified.Paragraphs(), documentID), nil
}

// DiffParagraphs compares two paragraph lists by index and returns the
// changes needed to turn original into modified.
func DiffParagraphs(original, modified []string, documentID string) []domain.DocumentChange {
	var changes []domain.DocumentChange

	common := len(original)
	if len(modified) < common {
		common = len(modified)
	}

	for i := 0; i < common; i++ {
		if original[i] == modified[i] {
			continue
		}
		change := domain.NewChange(documentID, domain.ChangeTextUpdate, domain.ParagraphAt(i))
		change.OldValue = original[i]
		change.NewValue = modified[i]
		change.Description = fmt.Sprintf("Text changed in paragraph %d", i)
		changes = append(changes, change)
	}

	for i := common; i < len(modified); i++ {
		change := domain.NewChange(documentID, domain.ChangeParagraphInsert, domain.ParagraphAt(i))
		change.NewValue = modified[i]
		change.Description = fmt.Sprintf("Paragraph %d inserted", i)
		changes = append(changes, change)
	}

	for i := common; i < len(original); i++ {
		change := domain.NewChange(documentID, domain.ChangeParagraphDelete, domain.ParagraphAt(i))
		change.OldValue = original[i]
		change.Description = fmt.Sprintf("Paragraph %d deleted", i)
		changes = append(changes, change)
	}

	return changes
}
