package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure RevisionService implements the interface.
var _ driving.RevisionService = (*RevisionService)(nil)

// Change provenance values recorded on DocumentChange.Source.
const (
	sourceLLMSuggestion  = "llm_suggestion"
	sourceChangeDetector = "change_detector"
)

// proposalMaxTokens bounds the LLM response for a revision proposal.
const proposalMaxTokens = 2048

// defaultRevisionPrompt is used when no prompt store is configured.
const defaultRevisionPrompt = `You are revising a standard operating procedure. Propose the minimal set of edits that satisfies the INSTRUCTION while keeping the rest of the document untouched.

Respond with a JSON array only, no prose. Each element must have:
- "type": one of "text_update", "paragraph_insert", "paragraph_delete", "section_replace"
- "paragraph_index": zero-based body paragraph index (for paragraph types)
- "heading": the section heading text (for "section_replace")
- "old_value": the current text (empty for inserts)
- "new_value": the replacement text (empty for deletes)
- "description": one sentence explaining the edit

DOCUMENT (paragraphs numbered):
%s

RELATED CONTEXT:
%s

INSTRUCTION: %s

JSON:`

// RevisionService manages the propose / review / apply workflow for SOP
// document changes.
type RevisionService struct {
	docStore  driven.DocumentStore
	workflows driven.WorkflowStore
	search    driving.SearchService
	llm       driven.LLMService
	applier   driven.ChangeApplier
	detector  driven.ChangeDetector
	prompts   driven.PromptStore
}

// NewRevisionService creates a revision service. The search and llm
// parameters are optional; Propose requires the llm.
func NewRevisionService(
	docStore driven.DocumentStore,
	workflows driven.WorkflowStore,
	search driving.SearchService,
	llm driven.LLMService,
	applier driven.ChangeApplier,
	detector driven.ChangeDetector,
) *RevisionService {
	return &RevisionService{
		docStore:  docStore,
		workflows: workflows,
		search:    search,
		llm:       llm,
		applier:   applier,
		detector:  detector,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *RevisionService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Propose asks the LLM for edits satisfying the instruction and
// persists them as a workflow of proposed changes.
func (s *RevisionService) Propose(ctx context.Context, documentID, instruction string) (*domain.ChangeWorkflow, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("empty instruction: %w", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	logger.Section("Revision Proposal")

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	numbered, err := s.numberedDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	related := s.relatedContext(ctx, doc.ID, instruction)

	template := s.loadPrompt(driven.PromptRevisionProposal, defaultRevisionPrompt)
	prompt := fmt.Sprintf(template, numbered, related, instruction)

	response, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   proposalMaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("generate proposal: %w", err)
	}

	changes, err := parseProposedChanges(response, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("parse proposal: %w", err)
	}
	logger.Info("LLM proposed %d changes", len(changes))

	workflow := domain.NewWorkflow(doc.ID, instruction)
	workflow.Metadata["model"] = s.llm.ModelName()
	for _, change := range changes {
		change.Source = sourceLLMSuggestion
		workflow.AddChange(change)
	}

	if err := s.workflows.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	return workflow, nil
}

// Diff compares two .docx files and persists the detected changes as a
// workflow for review.
func (s *RevisionService) Diff(ctx context.Context, originalPath, modifiedPath string) (*domain.ChangeWorkflow, error) {
	logger.Section("Document Diff")

	documentID := ""
	if doc, err := s.docStore.GetDocumentByURI(ctx, originalPath); err == nil {
		documentID = doc.ID
	}

	changes, err := s.detector.Detect(ctx, originalPath, modifiedPath, documentID)
	if err != nil {
		return nil, fmt.Errorf("detect changes: %w", err)
	}
	logger.Info("Detected %d changes", len(changes))

	instruction := fmt.Sprintf("apply differences from %s", filepath.Base(modifiedPath))
	workflow := domain.NewWorkflow(documentID, instruction)
	workflow.Metadata["original_path"] = originalPath
	workflow.Metadata["modified_path"] = modifiedPath
	for _, change := range changes {
		change.Source = sourceChangeDetector
		workflow.AddChange(change)
	}

	if err := s.workflows.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	return workflow, nil
}

// Get retrieves a workflow with its changes.
func (s *RevisionService) Get(ctx context.Context, workflowID string) (*domain.ChangeWorkflow, error) {
	return s.workflows.GetWorkflow(ctx, workflowID)
}

// List returns all workflows, most recent first.
func (s *RevisionService) List(ctx context.Context) ([]domain.ChangeWorkflow, error) {
	return s.workflows.ListWorkflows(ctx)
}

// Accept marks a proposed change as accepted.
func (s *RevisionService) Accept(ctx context.Context, workflowID, changeID string) error {
	return s.review(ctx, workflowID, changeID, domain.StatusAccepted)
}

// Reject marks a proposed change as rejected.
func (s *RevisionService) Reject(ctx context.Context, workflowID, changeID string) error {
	return s.review(ctx, workflowID, changeID, domain.StatusRejected)
}

// Apply writes all accepted changes to the document file. Each change
// ends up applied or failed; the workflow completes once every change
// has been reviewed.
func (s *RevisionService) Apply(ctx context.Context, workflowID, outPath string) (*driving.ApplyReport, error) {
	workflow, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !workflow.Status.Open() {
		return nil, domain.ErrWorkflowClosed
	}

	path, err := s.documentPath(ctx, workflow)
	if err != nil {
		return nil, err
	}
	if outPath == "" {
		outPath = path
	}

	report := &driving.ApplyReport{OutPath: outPath}

	accepted := workflow.Accepted()
	if len(accepted) > 0 {
		logger.Info("Applying %d accepted changes to %s", len(accepted), outPath)

		results, err := s.applier.Apply(ctx, path, outPath, accepted)
		if err != nil {
			return nil, fmt.Errorf("apply changes: %w", err)
		}

		for _, result := range results {
			next := domain.StatusApplied
			if !result.Applied {
				next = domain.StatusFailed
			}
			if err := workflow.UpdateStatus(result.ChangeID, next); err != nil {
				return nil, fmt.Errorf("update change %s: %w", result.ChangeID, err)
			}
			change := workflow.ChangeByID(result.ChangeID)
			if result.Applied {
				report.Applied++
			} else {
				if result.Err != nil {
					change.Error = result.Err.Error()
				}
				report.Failed++
			}
			if err := s.workflows.UpdateChange(ctx, change); err != nil {
				return nil, fmt.Errorf("persist change %s: %w", result.ChangeID, err)
			}
		}
	}

	report.Remaining = len(workflow.Proposed())
	if report.Remaining == 0 {
		workflow.Status = domain.WorkflowCompleted
		if err := s.workflows.SaveWorkflow(ctx, workflow); err != nil {
			return nil, fmt.Errorf("complete workflow: %w", err)
		}
		logger.Info("Workflow %s completed", workflow.ID)
	}

	return report, nil
}

// Cancel abandons a workflow.
func (s *RevisionService) Cancel(ctx context.Context, workflowID string) error {
	workflow, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if !workflow.Status.Open() {
		return domain.ErrWorkflowClosed
	}
	workflow.Status = domain.WorkflowCancelled
	return s.workflows.SaveWorkflow(ctx, workflow)
}

// review transitions a single change and persists it.
func (s *RevisionService) review(ctx context.Context, workflowID, changeID string, next domain.ChangeStatus) error {
	workflow, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if !workflow.Status.Open() {
		return domain.ErrWorkflowClosed
	}
	if err := workflow.UpdateStatus(changeID, next); err != nil {
		return err
	}
	return s.workflows.UpdateChange(ctx, workflow.ChangeByID(changeID))
}

// documentPath resolves the on-disk file a workflow edits.
func (s *RevisionService) documentPath(ctx context.Context, workflow *domain.ChangeWorkflow) (string, error) {
	if path, ok := workflow.Metadata["original_path"].(string); ok && path != "" {
		return path, nil
	}
	doc, err := s.docStore.GetDocument(ctx, workflow.DocumentID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	return doc.URI, nil
}

// numberedDocument renders the document content with zero-based
// paragraph indexes so the LLM can address edits.
func (s *RevisionService) numberedDocument(ctx context.Context, doc *domain.Document) (string, error) {
	content := doc.Content
	if content == "" {
		chunks, err := s.docStore.GetChunks(ctx, doc.ID)
		if err != nil {
			return "", fmt.Errorf("load chunks: %w", err)
		}
		var parts []string
		for _, chunk := range chunks {
			parts = append(parts, chunk.Content)
		}
		content = strings.Join(parts, "\n")
	}

	var b strings.Builder
	index := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n", index, line)
		index++
	}
	return b.String(), nil
}

// relatedContext retrieves chunks from other documents that relate to
// the instruction, so proposals stay consistent with the wider corpus.
func (s *RevisionService) relatedContext(ctx context.Context, documentID, instruction string) string {
	if s.search == nil {
		return "(none)"
	}
	results, err := s.search.Search(ctx, instruction, domain.SearchOptions{Limit: retrievalLimit})
	if err != nil {
		logger.Warn("Context retrieval failed: %v", err)
		return "(none)"
	}

	var b strings.Builder
	for _, result := range results {
		if result.Document.ID == documentID {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", result.Document.Title, result.Chunk.Content)
	}
	if b.Len() == 0 {
		return "(none)"
	}
	return strings.TrimSpace(b.String())
}

// proposedChange is the JSON shape the revision prompt asks for.
type proposedChange struct {
	Type           string `json:"type"`
	ParagraphIndex int    `json:"paragraph_index"`
	Heading        string `json:"heading"`
	Table          int    `json:"table"`
	Row            int    `json:"row"`
	Column         int    `json:"column"`
	OldValue       string `json:"old_value"`
	NewValue       string `json:"new_value"`
	Description    string `json:"description"`
}

// parseProposedChanges decodes the LLM's JSON change list. Markdown code
// fences around the array are tolerated.
func parseProposedChanges(response, documentID string) ([]domain.DocumentChange, error) {
	payload := stripCodeFence(response)

	var proposals []proposedChange
	if err := json.Unmarshal([]byte(payload), &proposals); err != nil {
		return nil, fmt.Errorf("decode change list: %w", err)
	}
	if len(proposals) == 0 {
		return nil, errors.New("no changes proposed")
	}

	changes := make([]domain.DocumentChange, 0, len(proposals))
	for _, p := range proposals {
		changeType := domain.ChangeType(p.Type)
		if !changeType.Valid() {
			return nil, fmt.Errorf("unknown change type %q: %w", p.Type, domain.ErrInvalidInput)
		}

		var location domain.ChangeLocation
		switch changeType {
		case domain.ChangeSectionReplace:
			if p.Heading == "" {
				return nil, fmt.Errorf("section_replace without heading: %w", domain.ErrInvalidInput)
			}
			location = domain.SectionUnder(p.Heading, "")
		case domain.ChangeTableCellUpdate:
			location = domain.CellAt(p.Table, p.Row, p.Column)
		default:
			if p.ParagraphIndex < 0 {
				return nil, fmt.Errorf("negative paragraph index: %w", domain.ErrInvalidInput)
			}
			location = domain.ParagraphAt(p.ParagraphIndex)
		}

		change := domain.NewChange(documentID, changeType, location)
		change.OldValue = p.OldValue
		change.NewValue = p.NewValue
		change.Description = p.Description
		changes = append(changes, change)
	}
	return changes, nil
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (s *RevisionService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	prompt, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
