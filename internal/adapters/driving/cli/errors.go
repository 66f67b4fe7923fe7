package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// userError adds a hint to errors the user can fix.
func userError(err error) error {
	switch {
	case errors.Is(err, domain.ErrLLMUnavailable):
		return fmt.Errorf("%w. Configure one with 'obra settings llm'", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Errorf("%w. Configure one with 'obra settings embedding'", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out (rag.request_timeout): %w", err)
	default:
		return err
	}
}
