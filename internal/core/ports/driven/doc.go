// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Connector: Reads SOP files from a local directory
//   - Normaliser: Transforms raw documents into indexed form
//   - NormaliserRegistry: Selects appropriate normaliser
//   - DocumentStore: Document and chunk persistence
//   - ConversationStore: Chat session persistence
//   - WorkflowStore: Change workflow persistence
//   - SyncStateStore: Indexing progress persistence
//   - ConfigStore: Application configuration
//   - SearchEngine: BM25 keyword search
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector storage/search. Only enabled when EmbeddingService is configured.
//   - EmbeddingService: Generates vector embeddings. Without it, VectorIndex is also disabled.
//   - LLMService: Language model operations. Without it, chat and revision proposals are disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
