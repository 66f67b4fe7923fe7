// Package storage holds helpers shared by the storage adapters: vector
// encoding and similarity, and term extraction for lexical search.
package storage
