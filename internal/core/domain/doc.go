// Package domain defines the core business entities for obra.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested file with its processing status
//   - Chunk: A retrievable unit of document content with provenance
//   - RankedChunk: A chunk returned by retrieval with a relevance score
//   - LineItem: A priced budget item destined for a BC3 file
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
