package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptQA: `Answer the following question based *only* on the provided context.
If the answer is not in the context, state "I don't know."

Context:
%s

Question: %s

Answer:`,

	driven.PromptSummarise: `Summarise the following text concisely and informatively, in %d characters or less.

Text:
%s

Summary:`,

	driven.PromptQueryRewrite: `Rewrite this search query to improve recall. Add synonyms and fix typos.
Return ONLY the rewritten query, nothing else.

Original: %s
Rewritten:`,

	driven.PromptChatSystem: `You are a careful assistant for a library of standard operating procedures (SOPs).
You answer questions using only the document excerpts supplied in each message.

When answering:
1. Quote or paraphrase the relevant excerpt and name the document it came from
2. If the excerpts do not contain the answer, say so plainly
3. Never invent procedure steps, thresholds or responsibilities
4. Keep answers short; operators read them mid-task`,

	driven.PromptPolicyAnalysis: `*Only* using the provided policy document, as a policy expert, analyse the document to answer the following query.
If the answer is not present, state "Information not found in the policy document."

Policy Document:
%s

Query: %s

Analysis:`,

	driven.PromptDocumentUpdate: `Update the ORIGINAL TEXT with the SUGGESTED CHANGES, considering the CONTEXT for consistency and maintaining original style. Explain your REASONING.

ORIGINAL TEXT:
%s

SUGGESTED CHANGES:
%s

CONTEXT:
%s

REVISED TEXT:
REASONING:`,

	driven.PromptConsistencyCheck: `Compare the DOCUMENT SECTION with the RELATED SECTIONS for consistency.
Identify and explain any inconsistencies in information, terminology, or style. Suggest resolutions.

DOCUMENT SECTION:
%s

RELATED SECTIONS:
%s

Consistency Check Results:`,

	driven.PromptRevisionProposal: `You are revising a standard operating procedure. Propose the minimal set of edits that satisfies the INSTRUCTION while keeping the rest of the document untouched.

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

JSON:`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.soprev/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".soprev", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Soprev Prompts

This directory contains customisable prompts used by soprev's LLM features.

## Files

- ` + "`qa.txt`" + ` - Answers a question from retrieved excerpts
- ` + "`summarise.txt`" + ` - Summarises document content
- ` + "`query_rewrite.txt`" + ` - Expands search queries for better recall
- ` + "`chat_system.txt`" + ` - System prompt for conversational mode
- ` + "`policy_analysis.txt`" + ` - Analyses a policy document for a query
- ` + "`document_update.txt`" + ` - Revises a section given suggested changes
- ` + "`consistency_check.txt`" + ` - Compares a section against related sections
- ` + "`revision_proposal.txt`" + ` - Asks for a JSON list of document edits

## Customisation

Edit any file to customise LLM behaviour. Changes take effect on the next
command or after restarting the chat.

## Format Placeholders

Prompts use Go fmt placeholders:
- ` + "`%s`" + ` - String (e.g., the query or content)
- ` + "`%d`" + ` - Integer (e.g., max length)

Ensure customised prompts maintain placeholders in the correct positions.
`
	return os.WriteFile(path, []byte(content), 0600)
}
