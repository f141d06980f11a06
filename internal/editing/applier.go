package editing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure Applier implements the interface.
var _ driven.ChangeApplier = (*Applier)(nil)

// Applier writes document changes into a Word file. Changes are
// ordered before application so earlier edits do not invalidate the
// paragraph indexes of later ones: deletes run first in descending
// index order, then inserts in ascending order, then text updates,
// section replacements and table cell updates.
type Applier struct{}

// NewApplier creates a change applier.
func NewApplier() *Applier {
	return &Applier{}
}

// Apply writes the given changes to the document at path, saving the
// result to outPath. A result is returned for every change; the error
// return covers opening and saving the document itself.
func (a *Applier) Apply(_ context.Context, path, outPath string, changes []domain.DocumentChange) ([]driven.ApplyResult, error) {
	editor, err := Open(path)
	if err != nil {
		return nil, err
	}

	results := make([]driven.ApplyResult, 0, len(changes))
	anyApplied := false

	for _, change := range orderForApplication(changes) {
		err := applyChange(editor, change)
		if err != nil {
			logger.Warn("change %s failed: %v", change.ID, err)
		} else {
			anyApplied = true
		}
		results = append(results, driven.ApplyResult{
			ChangeID: change.ID,
			Applied:  err == nil,
			Err:      err,
		})
	}

	if anyApplied || len(changes) == 0 {
		if err := editor.Save(outPath); err != nil {
			return results, fmt.Errorf("save document: %w", err)
		}
	}
	return results, nil
}

// orderForApplication sorts changes so index-based edits stay valid.
func orderForApplication(changes []domain.DocumentChange) []domain.DocumentChange {
	ordered := make([]domain.DocumentChange, len(changes))
	copy(ordered, changes)

	rank := func(c domain.DocumentChange) int {
		switch c.Type {
		case domain.ChangeParagraphDelete:
			return 0
		case domain.ChangeParagraphInsert:
			return 1
		case domain.ChangeTextUpdate:
			return 2
		case domain.ChangeSectionReplace:
			return 3
		default:
			return 4
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := rank(ordered[i]), rank(ordered[j])
		if ri != rj {
			return ri < rj
		}
		pi, pj := paragraphIndex(ordered[i]), paragraphIndex(ordered[j])
		if ri == 0 {
			// Deletes in reverse index order
			return pi > pj
		}
		return pi < pj
	})
	return ordered
}

func paragraphIndex(c domain.DocumentChange) int {
	if c.Location.Paragraph != nil {
		return c.Location.Paragraph.Index
	}
	return 0
}

func applyChange(editor *Editor, change domain.DocumentChange) error {
	switch change.Type {
	case domain.ChangeTextUpdate:
		if change.Location.Paragraph == nil {
			return fmt.Errorf("text update without paragraph location: %w", domain.ErrInvalidInput)
		}
		index, err := resolveParagraphIndex(editor, change)
		if err != nil {
			return err
		}
		return editor.UpdateParagraphText(index, change.NewValue)

	case domain.ChangeParagraphInsert:
		if change.Location.Paragraph == nil {
			return fmt.Errorf("paragraph insert without paragraph location: %w", domain.ErrInvalidInput)
		}
		index, err := resolveParagraphIndex(editor, change)
		if err != nil {
			return err
		}
		return editor.InsertParagraphAt(index, change.NewValue)

	case domain.ChangeParagraphDelete:
		if change.Location.Paragraph == nil {
			return fmt.Errorf("paragraph delete without paragraph location: %w", domain.ErrInvalidInput)
		}
		index, err := resolveParagraphIndex(editor, change)
		if err != nil {
			return err
		}
		return editor.DeleteParagraph(index)

	case domain.ChangeSectionReplace:
		if change.Location.Section == nil {
			return fmt.Errorf("section replace without section location: %w", domain.ErrInvalidInput)
		}
		paragraphs := splitSectionContent(change.NewValue)
		return editor.ReplaceSectionAfterHeading(
			change.Location.Section.HeadingText,
			change.Location.Section.HeadingStyle,
			paragraphs,
		)

	case domain.ChangeTableCellUpdate:
		if change.Location.Table == nil {
			return fmt.Errorf("table cell update without table location: %w", domain.ErrInvalidInput)
		}
		loc := change.Location.Table
		return editor.UpdateTableCell(loc.Table, loc.Row, loc.Column, change.NewValue)

	default:
		return fmt.Errorf("change type %q: %w", change.Type, domain.ErrUnsupportedType)
	}
}

// resolveParagraphIndex maps a change's paragraph index onto the body.
// Proposed changes index the normalised content, which skips empty
// spacing paragraphs, while the editor counts every body paragraph.
// The stated index is trusted only when its paragraph carries the
// change's old text; otherwise the index is remapped to the matching
// non-empty paragraph, then to the nearest paragraph with that text.
// A change whose old text appears nowhere in the body fails rather
// than rewriting the wrong paragraph.
func resolveParagraphIndex(editor *Editor, change domain.DocumentChange) (int, error) {
	index := change.Location.Paragraph.Index
	texts := editor.Paragraphs()

	if change.Type == domain.ChangeParagraphInsert {
		return nonEmptyPosition(texts, index), nil
	}

	want := canonicalParagraphText(change.OldValue)
	if want == "" {
		return index, nil
	}

	if index >= 0 && index < len(texts) && canonicalParagraphText(texts[index]) == want {
		return index, nil
	}
	if mapped := nonEmptyPosition(texts, index); mapped < len(texts) && canonicalParagraphText(texts[mapped]) == want {
		return mapped, nil
	}

	best := -1
	for i, text := range texts {
		if canonicalParagraphText(text) != want {
			continue
		}
		if best == -1 || indexDistance(i, index) < indexDistance(best, index) {
			best = i
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("paragraph %d: old text not found in document: %w", index, domain.ErrLocationOutOfRange)
	}
	return best, nil
}

// nonEmptyPosition returns the body index of the nth non-empty
// paragraph, or the body length when fewer exist.
func nonEmptyPosition(texts []string, n int) int {
	seen := 0
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if seen == n {
			return i
		}
		seen++
	}
	return len(texts)
}

// canonicalParagraphText trims whitespace and the markdown heading
// markers the normaliser prefixes to heading paragraphs, so proposal
// text compares equal to the raw body text.
func canonicalParagraphText(s string) string {
	s = strings.TrimSpace(s)
	if trimmed := strings.TrimLeft(s, "#"); trimmed != s {
		s = strings.TrimSpace(trimmed)
	}
	return s
}

func indexDistance(a, b int) int {
	if a < b {
		return b - a
	}
	return a - b
}

// splitSectionContent breaks a section body into paragraphs. Blank
// lines separate paragraphs; single newlines within a block are kept.
func splitSectionContent(content string) []string {
	var paragraphs []string
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}
