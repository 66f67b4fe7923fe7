package domain

// DefaultUnit is the unit assigned when none can be determined.
const DefaultUnit = "ud"

// LineItem is a priced budget item assembled from a retrieved chunk.
// It lives only for the duration of one BC3 generation.
type LineItem struct {
	// Code identifies the item in the budget.
	Code string

	// Summary is the short description. Items without one are discarded.
	Summary string

	// Unit is the measurement unit (m2, ml, m3, kg, pa, ud).
	Unit string

	// Price is the unit price. Zero means unknown.
	Price float64

	// Description is the optional long-form text.
	Description string

	// Score is the retrieval relevance carried from the source chunk.
	Score float64

	// PriceEstimated is true when the price came from the generative model.
	PriceEstimated bool

	// ChunkID identifies the originating chunk.
	ChunkID string
}

// HasPrice returns true if the item carries a known price.
func (i LineItem) HasPrice() bool {
	return i.Price > 0
}
