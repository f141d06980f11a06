package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// ==================== Document Store ====================

type fakeDocStore struct {
	mu     sync.Mutex
	docs   map[string]domain.Document
	chunks map[string]domain.Chunk
}

var _ driven.DocumentStore = (*fakeDocStore)(nil)

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string]domain.Chunk),
	}
}

func (f *fakeDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunk := range chunks {
		f.chunks[chunk.ID] = chunk
	}
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeDocStore) GetDocumentByURI(_ context.Context, uri string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.URI == uri {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

func (f *fakeDocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, chunk := range f.chunks {
		if chunk.DocumentID == documentID {
			out = append(out, chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeDocStore) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, chunk := range f.chunks {
		out = append(out, chunk)
	}
	return out, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	for chunkID, chunk := range f.chunks {
		if chunk.DocumentID == id {
			delete(f.chunks, chunkID)
		}
	}
	return nil
}

func (f *fakeDocStore) DeleteChunks(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for chunkID, chunk := range f.chunks {
		if chunk.DocumentID == documentID {
			delete(f.chunks, chunkID)
		}
	}
	return nil
}

func (f *fakeDocStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// ==================== Search Engine ====================

type fakeSearchEngine struct {
	mu      sync.Mutex
	indexed map[string]domain.Chunk
	hits    []driven.SearchHit
	err     error
}

var _ driven.SearchEngine = (*fakeSearchEngine)(nil)

func newFakeSearchEngine() *fakeSearchEngine {
	return &fakeSearchEngine{indexed: make(map[string]domain.Chunk)}
}

func (f *fakeSearchEngine) Index(_ context.Context, chunk domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[chunk.ID] = chunk
	return nil
}

func (f *fakeSearchEngine) Delete(_ context.Context, chunkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, chunkID)
	return nil
}

func (f *fakeSearchEngine) Search(_ context.Context, _ string, limit int) ([]driven.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeSearchEngine) Close() error { return nil }

func (f *fakeSearchEngine) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexed)
}

// ==================== Vector Index ====================

type fakeVectorIndex struct {
	mu      sync.Mutex
	vectors map[string][]float32
	hits    []driven.VectorHit
	err     error
}

var _ driven.VectorIndex = (*fakeVectorIndex)(nil)

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{vectors: make(map[string][]float32)}
}

func (f *fakeVectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[chunkID] = embedding
	return nil
}

func (f *fakeVectorIndex) Delete(_ context.Context, chunkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, chunkID)
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeVectorIndex) Close() error { return nil }

func (f *fakeVectorIndex) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

// ==================== Embedding Service ====================

type fakeEmbedder struct {
	err   error
	calls int
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                 { return 3 }
func (f *fakeEmbedder) ModelName() string               { return "fake-embed" }
func (f *fakeEmbedder) Ping(_ context.Context) error    { return nil }
func (f *fakeEmbedder) Close() error                    { return nil }

// ==================== LLM Service ====================

type fakeLLM struct {
	generateResponse string
	generateErr      error
	chatResponse     string
	chatErr          error
	rewriteResponse  string
	rewriteErr       error

	lastPrompt   string
	lastMessages []driven.ChatMessage
}

var _ driven.LLMService = (*fakeLLM)(nil)

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.lastPrompt = prompt
	return f.generateResponse, f.generateErr
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	f.lastMessages = messages
	return f.chatResponse, f.chatErr
}

func (f *fakeLLM) RewriteQuery(_ context.Context, query string) (string, error) {
	if f.rewriteErr != nil {
		return "", f.rewriteErr
	}
	if f.rewriteResponse != "" {
		return f.rewriteResponse, nil
	}
	return query, nil
}

func (f *fakeLLM) Summarise(_ context.Context, content string, maxLength int) (string, error) {
	if len(content) > maxLength {
		return content[:maxLength], nil
	}
	return content, nil
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

// ==================== Conversation Store ====================

type fakeConvStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	messages map[string][]domain.Message
}

var _ driven.ConversationStore = (*fakeConvStore)(nil)

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{
		sessions: make(map[string]domain.Session),
		messages: make(map[string][]domain.Message),
	}
}

func (f *fakeConvStore) SaveSession(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeConvStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

func (f *fakeConvStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, session := range f.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConvStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.sessions, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeConvStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.New().String()
	msg.TurnIndex = len(f.messages[msg.SessionID])
	msg.CreatedAt = time.Now().UTC()
	f.messages[msg.SessionID] = append(f.messages[msg.SessionID], *msg)
	return nil
}

func (f *fakeConvStore) Messages(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeConvStore) LastTurnIndex(_ context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[sessionID]) - 1, nil
}

// ==================== Workflow Store ====================

type fakeWorkflowStore struct {
	mu        sync.Mutex
	workflows map[string]*domain.ChangeWorkflow
}

var _ driven.WorkflowStore = (*fakeWorkflowStore)(nil)

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: make(map[string]*domain.ChangeWorkflow)}
}

func (f *fakeWorkflowStore) SaveWorkflow(_ context.Context, workflow *domain.ChangeWorkflow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *workflow
	clone.Changes = make([]domain.DocumentChange, len(workflow.Changes))
	copy(clone.Changes, workflow.Changes)
	f.workflows[workflow.ID] = &clone
	return nil
}

func (f *fakeWorkflowStore) GetWorkflow(_ context.Context, id string) (*domain.ChangeWorkflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workflow, ok := f.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *workflow
	clone.Changes = make([]domain.DocumentChange, len(workflow.Changes))
	copy(clone.Changes, workflow.Changes)
	return &clone, nil
}

func (f *fakeWorkflowStore) ListWorkflows(_ context.Context) ([]domain.ChangeWorkflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChangeWorkflow
	for _, workflow := range f.workflows {
		out = append(out, *workflow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeWorkflowStore) ListByDocument(_ context.Context, documentID string) ([]domain.ChangeWorkflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChangeWorkflow
	for _, workflow := range f.workflows {
		if workflow.DocumentID == documentID {
			out = append(out, *workflow)
		}
	}
	return out, nil
}

func (f *fakeWorkflowStore) UpdateChange(_ context.Context, change *domain.DocumentChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	workflow, ok := f.workflows[change.WorkflowID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range workflow.Changes {
		if workflow.Changes[i].ID == change.ID {
			workflow.Changes[i] = *change
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeWorkflowStore) DeleteWorkflow(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workflows, id)
	return nil
}

// ==================== Applier and Detector ====================

type fakeApplier struct {
	failIDs map[string]bool
	err     error
	calls   int
}

var _ driven.ChangeApplier = (*fakeApplier)(nil)

func (f *fakeApplier) Apply(_ context.Context, _, _ string, changes []domain.DocumentChange) ([]driven.ApplyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	results := make([]driven.ApplyResult, len(changes))
	for i, change := range changes {
		if f.failIDs[change.ID] {
			results[i] = driven.ApplyResult{ChangeID: change.ID, Applied: false, Err: fmt.Errorf("paragraph missing")}
		} else {
			results[i] = driven.ApplyResult{ChangeID: change.ID, Applied: true}
		}
	}
	return results, nil
}

type fakeDetector struct {
	changes []domain.DocumentChange
	err     error
}

var _ driven.ChangeDetector = (*fakeDetector)(nil)

func (f *fakeDetector) Detect(_ context.Context, _, _, documentID string) ([]domain.DocumentChange, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.DocumentChange, len(f.changes))
	for i, change := range f.changes {
		change.DocumentID = documentID
		out[i] = change
	}
	return out, nil
}

// ==================== Search Service Stub ====================

type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// ==================== Connector ====================

type fakeConnector struct {
	rootPath string
	docs     []domain.RawDocument
	events   chan domain.FileEvent
	closed   bool
}

var _ driven.Connector = (*fakeConnector)(nil)

func (f *fakeConnector) Type() string                       { return "fake" }
func (f *fakeConnector) RootPath() string                   { return f.rootPath }
func (f *fakeConnector) Validate(_ context.Context) error   { return nil }

func (f *fakeConnector) FullScan(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, len(f.docs))
	errs := make(chan error)
	for _, doc := range f.docs {
		docs <- doc
	}
	close(docs)
	close(errs)
	return docs, errs
}

func (f *fakeConnector) Watch(_ context.Context) (<-chan domain.FileEvent, error) {
	return f.events, nil
}

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

// rawTextDocument builds a plain-text raw document for tests.
func rawTextDocument(uri, content string) domain.RawDocument {
	return domain.RawDocument{
		URI:      uri,
		MIMEType: "text/plain",
		Content:  []byte(content),
		Metadata: map[string]any{
			"filename":   uri[strings.LastIndex(uri, "/")+1:],
			"size_bytes": int64(len(content)),
		},
	}
}
