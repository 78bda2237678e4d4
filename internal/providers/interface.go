package providers

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Provider is a text completion backend used for summaries
type Provider interface {
	// Name returns the provider identity ("openai", "anthropic")
	Name() string

	// Model returns the model the provider requests
	Model() string

	// Complete performs a single non-streaming completion and returns the
	// extracted text
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}
