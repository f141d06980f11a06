package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown document or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Features requiring the LLM (chat, revision proposals, query
	// rewriting) are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the keyword search engine is not
	// configured. Full-text search is disabled.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not
	// configured. Semantic similarity search is disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrRateLimited indicates the LLM API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Revision workflow errors.

	// ErrInvalidTransition indicates a change status transition that the
	// review workflow does not permit (e.g. rejected -> applied).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrWorkflowClosed indicates the workflow has been completed or
	// cancelled and no longer accepts review actions.
	ErrWorkflowClosed = errors.New("workflow closed")

	// ErrLocationOutOfRange indicates a change references a paragraph,
	// table or section that does not exist in the target document.
	ErrLocationOutOfRange = errors.New("change location out of range")

	// ErrHeadingNotFound indicates a section-replace change named a
	// heading that is not present in the document.
	ErrHeadingNotFound = errors.New("heading not found")
)
