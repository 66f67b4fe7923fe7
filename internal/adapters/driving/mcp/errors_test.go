package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/obra/internal/core/domain"
)

func TestToolError(t *testing.T) {
	validation := domain.NewValidationError("query", "must not be empty")

	tests := []struct {
		name string
		err  error
		want error
		msg  string
	}{
		{name: "validation passes through", err: validation, want: domain.ErrInvalidInput},
		{name: "not found passes through", err: fmt.Errorf("doc: %w", domain.ErrNotFound), want: domain.ErrNotFound},
		{name: "llm unavailable passes through", err: domain.ErrLLMUnavailable, want: domain.ErrLLMUnavailable},
		{name: "embedding unavailable passes through", err: domain.ErrEmbeddingUnavailable, want: domain.ErrEmbeddingUnavailable},
		{name: "saturated is unwrapped", err: fmt.Errorf("gemini 429: %w", domain.ErrGenerationSaturated), want: domain.ErrGenerationSaturated, msg: domain.ErrGenerationSaturated.Error()},
		{name: "generation failed is unwrapped", err: fmt.Errorf("secret detail: %w", domain.ErrGenerationFailed), want: domain.ErrGenerationFailed, msg: domain.ErrGenerationFailed.Error()},
		{name: "deadline", err: context.DeadlineExceeded, msg: "request timed out"},
		{name: "canceled", err: fmt.Errorf("wrapped: %w", context.Canceled), want: context.Canceled},
		{name: "unknown is hidden", err: errors.New("sqlite: disk I/O error"), want: errInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toolError("test", tt.err)
			if tt.want != nil {
				assert.ErrorIs(t, got, tt.want)
			}
			if tt.msg != "" {
				assert.Equal(t, tt.msg, got.Error())
			}
		})
	}
}

func TestToolError_HidesDetail(t *testing.T) {
	got := toolError("query", errors.New("api key sk-123 rejected"))
	assert.NotContains(t, got.Error(), "sk-123")
}
