package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fall back to built-in defaults.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptQA answers a question from retrieved context only.
	// The template expects %s (context) and %s (question) placeholders.
	PromptQA = "qa"

	// PromptSummarise creates summaries of document content.
	// The template expects %d (max length) and %s (content) placeholders.
	PromptSummarise = "summarise"

	// PromptQueryRewrite expands search queries for better recall.
	// The template expects a %s placeholder for the original query.
	PromptQueryRewrite = "query_rewrite"

	// PromptChatSystem is the system prompt for conversational mode.
	// This prompt has no format placeholders.
	PromptChatSystem = "chat_system"

	// PromptPolicyAnalysis analyses a policy document for a query.
	// The template expects %s (document) and %s (query) placeholders.
	PromptPolicyAnalysis = "policy_analysis"

	// PromptDocumentUpdate revises a section given suggested changes.
	// The template expects %s (original), %s (changes) and %s (context).
	PromptDocumentUpdate = "document_update"

	// PromptConsistencyCheck compares a section against related sections.
	// The template expects %s (section) and %s (related) placeholders.
	PromptConsistencyCheck = "consistency_check"

	// PromptRevisionProposal asks for a JSON list of document changes.
	// The template expects %s (document), %s (context) and %s (instruction).
	PromptRevisionProposal = "revision_proposal"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
