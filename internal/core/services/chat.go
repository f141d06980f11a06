package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Token budgets for one chat turn, using the rough 4 chars = 1 token
// approximation. The total stays under small local model contexts.
const (
	maxContextTokens = 2048
	maxHistoryTokens = 1024
	maxAnswerTokens  = 1024
)

// retrievalLimit is how many chunks are retrieved per question.
const retrievalLimit = 5

// Fallback prompts used when no prompt store is configured.
const (
	defaultChatSystemPrompt = `You are a careful assistant for a library of standard operating procedures (SOPs).
You answer questions using only the document excerpts supplied in each message.

When answering:
1. Quote or paraphrase the relevant excerpt and name the document it came from
2. If the excerpts do not contain the answer, say so plainly
3. Never invent procedure steps, thresholds or responsibilities
4. Keep answers short; operators read them mid-task`

	defaultQAPrompt = `Answer the following question based *only* on the provided context.
If the answer is not in the context, state "I don't know."

Context:
%s

Question: %s

Answer:`
)

// ChatService answers questions about the indexed SOP corpus with
// retrieval-augmented generation and persistent conversation history.
type ChatService struct {
	conversations driven.ConversationStore
	search        driving.SearchService
	llm           driven.LLMService
	prompts       driven.PromptStore
}

// NewChatService creates a chat service. The prompt store is optional;
// without it built-in prompt templates are used.
func NewChatService(
	conversations driven.ConversationStore,
	search driving.SearchService,
	llm driven.LLMService,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		search:        search,
		llm:           llm,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ChatService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Ask runs one conversational turn: persist the question, retrieve
// context, query the LLM and persist the answer.
func (s *ChatService) Ask(ctx context.Context, sessionID, question string) (*driving.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	logger.Section("Chat Turn")

	session, err := s.resolveSession(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	// History is loaded before the question is appended so the prompt
	// does not contain the question twice.
	history, err := s.conversations.Messages(ctx, session.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := domain.Message{SessionID: session.ID, Role: domain.RoleUser, Content: question}
	if err := s.conversations.AppendMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("save question: %w", err)
	}

	citations := s.retrieve(ctx, question)
	logger.Debug("Retrieved %d context chunks", len(citations))

	answer, err := s.llm.Chat(ctx, s.buildMessages(history, citations, question), driven.ChatOptions{
		MaxTokens:   maxAnswerTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	assistantMsg := domain.Message{
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   answer,
		Metadata:  citationMetadata(citations),
	}
	if err := s.conversations.AppendMessage(ctx, &assistantMsg); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	return &driving.Answer{
		SessionID: session.ID,
		Text:      answer,
		Citations: citations,
	}, nil
}

// History returns a session's messages in turn order.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if _, err := s.conversations.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.conversations.Messages(ctx, sessionID, 0)
}

// Sessions lists stored sessions, most recently updated first.
func (s *ChatService) Sessions(ctx context.Context) ([]domain.Session, error) {
	return s.conversations.ListSessions(ctx)
}

// ClearSession deletes a session and its history.
func (s *ChatService) ClearSession(ctx context.Context, sessionID string) error {
	return s.conversations.DeleteSession(ctx, sessionID)
}

// resolveSession loads an existing session or starts a new one titled
// after the first question.
func (s *ChatService) resolveSession(ctx context.Context, sessionID, question string) (*domain.Session, error) {
	if sessionID != "" {
		session, err := s.conversations.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		return session, nil
	}

	session := domain.NewSession(sessionTitle(question))
	if err := s.conversations.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	logger.Debug("Started session %s", session.ID)
	return &session, nil
}

// retrieve fetches context chunks for the question. Retrieval failures
// degrade to an answer without document context rather than an error.
func (s *ChatService) retrieve(ctx context.Context, question string) []domain.SearchResult {
	if s.search == nil {
		return nil
	}
	results, err := s.search.Search(ctx, question, domain.SearchOptions{Limit: retrievalLimit})
	if err != nil {
		logger.Warn("Retrieval failed: %v", err)
		return nil
	}
	return results
}

// buildMessages assembles the LLM conversation: system prompt, trimmed
// history, then the question wrapped in the QA template with retrieved
// context.
func (s *ChatService) buildMessages(history []domain.Message, citations []domain.SearchResult, question string) []driven.ChatMessage {
	messages := []driven.ChatMessage{
		{Role: "system", Content: s.loadPrompt(driven.PromptChatSystem, defaultChatSystemPrompt)},
	}

	for _, msg := range trimHistory(history, maxHistoryTokens) {
		messages = append(messages, driven.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	qa := s.loadPrompt(driven.PromptQA, defaultQAPrompt)
	messages = append(messages, driven.ChatMessage{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf(qa, contextBlock(citations, maxContextTokens), question),
	})
	return messages
}

// trimHistory keeps the most recent messages that fit the token budget,
// in chronological order.
func trimHistory(history []domain.Message, budget int) []domain.Message {
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		tokens := estimateTokens(history[i].Content)
		if used+tokens > budget {
			break
		}
		used += tokens
		start = i
	}
	return history[start:]
}

// contextBlock formats retrieved chunks as a context string, stopping
// when the token budget is reached.
func contextBlock(citations []domain.SearchResult, budget int) string {
	if len(citations) == 0 {
		return "(no matching documents found)"
	}

	var b strings.Builder
	used := 0
	for _, result := range citations {
		entry := fmt.Sprintf("[%s]\n%s\n\n", result.Document.Title, result.Chunk.Content)
		tokens := estimateTokens(entry)
		if used+tokens > budget {
			remaining := (budget - used) * 4
			if remaining > 0 {
				b.WriteString(entry[:min(remaining, len(entry))])
			}
			break
		}
		b.WriteString(entry)
		used += tokens
	}
	return strings.TrimSpace(b.String())
}

// citationMetadata records which chunks grounded an answer.
func citationMetadata(citations []domain.SearchResult) map[string]any {
	if len(citations) == 0 {
		return nil
	}
	chunkIDs := make([]any, len(citations))
	documents := make([]any, len(citations))
	for i, c := range citations {
		chunkIDs[i] = c.Chunk.ID
		documents[i] = c.Document.Title
	}
	return map[string]any{
		"chunk_ids": chunkIDs,
		"documents": documents,
	}
}

// estimateTokens approximates token count as one per four characters.
func estimateTokens(text string) int {
	return len(text) / 4
}

// sessionTitle derives a short display name from the first question.
func sessionTitle(question string) string {
	const maxTitle = 60
	if len(question) <= maxTitle {
		return question
	}
	return question[:maxTitle] + "..."
}

func (s *ChatService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	prompt, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
