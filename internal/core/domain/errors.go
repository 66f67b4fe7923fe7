package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Requests failing validation are rejected before any retrieval or generation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no normaliser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrFileTooLarge indicates an ingested file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrDecode indicates BC3 input could not be interpreted under any candidate encoding.
	// Fatal for the file being ingested, never for the whole batch.
	ErrDecode = errors.New("undecodable BC3 content")

	// ErrNoContent indicates a document produced no indexable content.
	ErrNoContent = errors.New("no content extracted")

	// ErrLLMUnavailable indicates the generative model is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationSaturated indicates the generative model kept rate limiting
	// after all retries. The caller may try again later.
	ErrGenerationSaturated = errors.New("generation service temporarily saturated, try again in a few minutes")

	// ErrGenerationFailed indicates any other generative model failure.
	// The underlying cause is logged, never returned.
	ErrGenerationFailed = errors.New("generation failed")
)

// ValidationError describes a rejected request parameter.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	// Field is the offending parameter.
	Field string

	// Reason explains what is wrong with it.
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
