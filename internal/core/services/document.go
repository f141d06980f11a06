package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// summaryMaxChars bounds the length of document summaries.
const summaryMaxChars = 600

// DocumentService manages stored documents.
type DocumentService struct {
	docStore driven.DocumentStore
	indexer  driving.IndexService
	llm      driven.LLMService
}

// NewDocumentService creates a document service. Deletions are routed
// through the indexer so index entries stay consistent with the store.
func NewDocumentService(docStore driven.DocumentStore, indexer driving.IndexService) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		indexer:  indexer,
	}
}

// SetLLM sets the language model used for document summaries.
func (s *DocumentService) SetLLM(llm driven.LLMService) {
	s.llm = llm
}

// List returns all stored documents.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetByURI retrieves a document by file path.
func (s *DocumentService) GetByURI(ctx context.Context, uri string) (*domain.Document, error) {
	return s.docStore.GetDocumentByURI(ctx, uri)
}

// GetContent returns the document's full text. Falls back to joining
// chunk contents for documents stored before content was persisted.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Content != "" {
		return doc.Content, nil
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load chunks: %w", err)
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}
	return strings.Join(parts, "\n"), nil
}

// Summarise produces a short summary of the document's content.
func (s *DocumentService) Summarise(ctx context.Context, documentID string) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	content, err := s.GetContent(ctx, documentID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("document has no content: %w", domain.ErrInvalidInput)
	}

	summary, err := s.llm.Summarise(ctx, content, summaryMaxChars)
	if err != nil {
		return "", fmt.Errorf("summarise document: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// Delete removes a document and its index entries.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	return s.indexer.Remove(ctx, documentID)
}
