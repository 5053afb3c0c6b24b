// Package llm provides an abstraction for OpenAI-compatible chat-completion APIs.
package llm

import "context"

// LLMClient defines the interface for chat-completion API operations.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// ListModels retrieves the list of available models.
	ListModels(ctx context.Context) ([]Model, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)
