// Package mcp provides an MCP (Model Context Protocol) server adapter for obra.
// It lets AI assistants search the price index, ask cost questions and
// generate BC3 budgets.
package mcp

import (
	"context"
	"errors"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/logger"
)

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// errServiceUnavailable is reported for tools whose port was not wired.
var errServiceUnavailable = errors.New("service not configured on this server")

// errInternal replaces failures whose detail must not reach the client.
var errInternal = errors.New("internal error, see server log")

// toolError maps a service error to the message returned to the client.
// Validation and availability errors pass through; anything else is
// logged and replaced by a generic error.
func toolError(tool string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		return err
	case errors.Is(err, domain.ErrGenerationSaturated):
		return domain.ErrGenerationSaturated
	case errors.Is(err, domain.ErrGenerationFailed):
		return domain.ErrGenerationFailed
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("request timed out")
	case errors.Is(err, context.Canceled):
		return context.Canceled
	default:
		logger.L().Errorw("mcp tool failed", "tool", tool, "error", err)
		return errInternal
	}
}
