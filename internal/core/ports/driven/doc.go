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
//   - ContentStore: Chunk, embedding and full-text persistence with
//     vector and lexical queries
//   - DocumentStore: Document persistence
//   - EmbeddingService: Generates vector embeddings. Retrieval needs it.
//   - Normaliser / NormaliserRegistry: Extract text sections from files
//   - PostProcessor / PostProcessorPipeline: Cut sections into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Generative model. Without it, search and BC3 generation
//     still work but questions cannot be answered and prices are not estimated.
//   - SessionStore: Conversation memory. Without it, queries are stateless.
//   - PromptStore: User-editable prompts. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
