package driven

// PromptStore resolves prompt templates by name. Users may override any
// template with a file of the same name; missing overrides fall back to
// the built-in text.
type PromptStore interface {
	Load(name string) (string, error)

	// Reload drops cached templates.
	Reload()
}

// Template names.
const (
	// PromptRAGSystem instructs the model to answer only from numbered fragments.
	PromptRAGSystem = "rag_system"

	// PromptRAGContext takes %s fragments then %s question.
	PromptRAGContext = "rag_context"

	// PromptMarketEstimate is used when no fragment reached the score threshold.
	PromptMarketEstimate = "market_estimate"

	// PromptPriceEstimate takes %s summary, %s unit and %s description and
	// expects a bare number back.
	PromptPriceEstimate = "price_estimate"
)

// PromptStoreAware is implemented by services whose prompts can be overridden.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}
