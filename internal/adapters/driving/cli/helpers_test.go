package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/core/services"
)

// resetFlags restores the named flags to their defaults and clears
// their changed state, which otherwise leaks between Execute calls.
func resetFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		f.Changed = false
		_ = f.Value.Set(f.DefValue)
	}
}

// setupTestServices installs fake services so commands execute without
// real stores or providers. The returned cleanup restores the previous
// state.
func setupTestServices() func() {
	oldIndex := indexService
	oldSearch := searchService
	oldChat := chatService
	oldRevision := revisionService
	oldDocument := documentService
	oldWatch := watchService
	oldSettings := settingsService
	oldBootstrapped := bootstrapped

	indexService = &mockIndexService{}
	searchService = &mockSearchService{}
	chatService = &mockChatService{}
	revisionService = &mockRevisionService{}
	documentService = &mockDocumentService{}
	watchService = &mockWatchService{}
	settingsService = services.NewSettingsService(&mockConfigStore{values: map[string]any{}})
	bootstrapped = true

	return func() {
		indexService = oldIndex
		searchService = oldSearch
		chatService = oldChat
		revisionService = oldRevision
		documentService = oldDocument
		watchService = oldWatch
		settingsService = oldSettings
		bootstrapped = oldBootstrapped
	}
}

func testDocument() domain.Document {
	return domain.Document{
		ID:        "doc-1",
		URI:       "/sops/cold-chain.docx",
		Title:     "Cold Chain Handling",
		FileType:  ".docx",
		Version:   1,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	}
}

func testWorkflow() *domain.ChangeWorkflow {
	change := domain.NewChange("doc-1", domain.ChangeTextUpdate, domain.ParagraphAt(2))
	change.ID = "change-1"
	change.OldValue = "Review annually."
	change.NewValue = "Review every six months."
	change.Description = "Tighten the review cadence"

	w := domain.NewWorkflow("doc-1", "tighten review cadence")
	w.ID = "workflow-1"
	w.AddChange(change)
	return w
}

type mockSearchService struct {
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return []domain.SearchResult{
		{
			Document:   testDocument(),
			Chunk:      domain.Chunk{ID: "chunk-1", DocumentID: "doc-1"},
			Score:      0.95,
			Highlights: []string{"store vaccines between 2C and 8C"},
		},
	}, nil
}

type mockSearchServiceError struct{}

func (m *mockSearchServiceError) Search(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
	return nil, errors.New("index unavailable")
}

type mockIndexService struct {
	indexedPaths []string
	removedIDs   []string
}

func (m *mockIndexService) IndexPath(_ context.Context, path string, progress func(int, string)) (*driving.IndexReport, error) {
	m.indexedPaths = append(m.indexedPaths, path)
	if progress != nil {
		progress(1, "/sops/cold-chain.docx")
		progress(2, "/sops/capa.docx")
	}
	return &driving.IndexReport{Indexed: 2}, nil
}

func (m *mockIndexService) IndexRaw(context.Context, domain.RawDocument) (*domain.Document, error) {
	doc := testDocument()
	return &doc, nil
}

func (m *mockIndexService) Remove(_ context.Context, documentID string) error {
	m.removedIDs = append(m.removedIDs, documentID)
	return nil
}

func (m *mockIndexService) Rebuild(context.Context) error {
	return nil
}

type mockChatService struct {
	lastSession  string
	lastQuestion string
}

func (m *mockChatService) Ask(_ context.Context, sessionID, question string) (*driving.Answer, error) {
	m.lastSession = sessionID
	m.lastQuestion = question
	return &driving.Answer{
		SessionID: "session-1",
		Text:      "Store vaccines between 2C and 8C.",
		Citations: []domain.SearchResult{{Document: testDocument()}},
	}, nil
}

func (m *mockChatService) History(context.Context, string) ([]domain.Message, error) {
	return nil, nil
}

func (m *mockChatService) Sessions(context.Context) ([]domain.Session, error) {
	return nil, nil
}

func (m *mockChatService) ClearSession(context.Context, string) error {
	return nil
}

type mockRevisionService struct {
	accepted  []string
	rejected  []string
	cancelled []string
	applyOut  string
}

func (m *mockRevisionService) Propose(context.Context, string, string) (*domain.ChangeWorkflow, error) {
	return testWorkflow(), nil
}

func (m *mockRevisionService) Diff(context.Context, string, string) (*domain.ChangeWorkflow, error) {
	return testWorkflow(), nil
}

func (m *mockRevisionService) Get(context.Context, string) (*domain.ChangeWorkflow, error) {
	return testWorkflow(), nil
}

func (m *mockRevisionService) List(context.Context) ([]domain.ChangeWorkflow, error) {
	return []domain.ChangeWorkflow{*testWorkflow()}, nil
}

func (m *mockRevisionService) Accept(_ context.Context, _, changeID string) error {
	m.accepted = append(m.accepted, changeID)
	return nil
}

func (m *mockRevisionService) Reject(_ context.Context, _, changeID string) error {
	m.rejected = append(m.rejected, changeID)
	return nil
}

func (m *mockRevisionService) Apply(_ context.Context, _, outPath string) (*driving.ApplyReport, error) {
	m.applyOut = outPath
	return &driving.ApplyReport{Applied: 1, OutPath: "/sops/cold-chain.docx"}, nil
}

func (m *mockRevisionService) Cancel(_ context.Context, workflowID string) error {
	m.cancelled = append(m.cancelled, workflowID)
	return nil
}

type mockDocumentService struct {
	deletedIDs []string
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	return []domain.Document{testDocument()}, nil
}

func (m *mockDocumentService) Get(context.Context, string) (*domain.Document, error) {
	doc := testDocument()
	return &doc, nil
}

func (m *mockDocumentService) GetByURI(context.Context, string) (*domain.Document, error) {
	doc := testDocument()
	return &doc, nil
}

func (m *mockDocumentService) GetContent(context.Context, string) (string, error) {
	return "Purpose\n\nThis SOP covers cold chain handling.", nil
}

func (m *mockDocumentService) Summarise(context.Context, string) (string, error) {
	return "Covers receipt, storage and transport of cold chain goods.", nil
}

func (m *mockDocumentService) Delete(_ context.Context, documentID string) error {
	m.deletedIDs = append(m.deletedIDs, documentID)
	return nil
}

type mockWatchService struct {
	watchedPath string
}

func (m *mockWatchService) Watch(_ context.Context, path string) error {
	m.watchedPath = path
	return nil
}

// mockConfigStore is an in-memory driven.ConfigStore.
type mockConfigStore struct {
	values map[string]any
	saves  int
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	if v, ok := m.values[key].(string); ok {
		return v
	}
	return ""
}

func (m *mockConfigStore) GetInt(key string) int {
	switch v := m.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	v, _ := m.values[key].(bool)
	return v
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	v, _ := m.values[key].([]string)
	return v
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error {
	m.saves++
	return nil
}

func (m *mockConfigStore) Load() error {
	return nil
}

func (m *mockConfigStore) Path() string {
	return "/home/user/.soprev/config.toml"
}
