// Package sqlite stores documents, chunks, embeddings and the full-text index
// in a single SQLite database.
//
// It uses modernc.org/sqlite, a pure Go SQLite build with FTS5, so no CGO is
// needed. One Store serves two ports:
//
//   - DocumentStore: document records and their chunks
//   - ContentStore: chunk and embedding writes, and retrieval snapshots
//
// # Retrieval
//
// Vector search is exhaustive cosine similarity over float32 blobs. Lexical
// search uses an external-content FTS5 table (unicode61, diacritics removed)
// ranked by bm25. Both run on the same transaction opened by BeginRead.
//
// # Schema
//
// Versioned migrations live in migrations/ and are embedded in the binary.
//
// # Data Location
//
// By default, the database is stored at ~/.obra/data/obra.db.
package sqlite
