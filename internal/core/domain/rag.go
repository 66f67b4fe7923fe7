package domain

// Query and BC3 request bounds.
const (
	DefaultMaxResults = 5
	MaxMaxResults     = 20
	MaxQueryLength    = 5000
	DefaultMinScore   = 0.5

	DefaultResultsPerQuery = 3
	MaxResultsPerQuery     = 10
	MaxBC3Queries          = 50
	MaxProjectNameLength   = 200
	DefaultProjectName     = "Presupuesto generado"
)

// QueryRequest asks a cost question.
type QueryRequest struct {
	// Query is the natural-language question.
	Query string

	// MaxResults bounds retrieved evidence. Zero means DefaultMaxResults.
	MaxResults int

	// Filters restricts the candidate documents.
	Filters SearchFilters

	// MinScore is the relevance gate. Nil means DefaultMinScore.
	MinScore *float64

	// SessionID enables conversation history when set.
	SessionID string
}

// QueryMetadata describes how an answer was produced.
type QueryMetadata struct {
	ResultsCount     int
	MaxScore         float64
	IsMarketEstimate bool
	MinScoreUsed     float64
}

// QueryResponse is a generated answer with its evidence.
type QueryResponse struct {
	// Answer is the generated text (markdown).
	Answer string

	// Sources is the evidence the answer was grounded on.
	Sources []RankedChunk

	// SessionID echoes the session the exchange was recorded in.
	SessionID string

	// Metadata describes the retrieval outcome.
	Metadata QueryMetadata
}

// BC3Request asks for a budget file built from retrieved items.
type BC3Request struct {
	// Queries are item descriptions to search for, one per line item group.
	Queries []string

	// MaxResultsPerQuery bounds items taken per query. Zero means DefaultResultsPerQuery.
	MaxResultsPerQuery int

	// ProjectName names the root concept. Empty means DefaultProjectName.
	ProjectName string

	// Filters restricts the candidate documents.
	Filters SearchFilters

	// EnrichPrices asks the generative model to estimate missing prices.
	EnrichPrices bool
}

// BC3Result is a generated budget file.
type BC3Result struct {
	// Content is the Latin-1 encoded file.
	Content []byte

	// Filename is a suggested file name.
	Filename string

	// Items are the line items written, in file order.
	Items []LineItem

	// QueriesProcessed is the number of queries searched.
	QueriesProcessed int

	// EstimatedPrices counts items priced by the generative model.
	EstimatedPrices int
}
