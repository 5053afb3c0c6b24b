package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Ruqii/LLMPuzzle/internal/adapter/llm"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

const (
	temperature = 0.7
	topP        = 0.9
	maxTokens   = 80
)

// ChatCompletion generates lines through an OpenAI-compatible client.
type ChatCompletion struct {
	client llm.LLMClient
	model  string
}

var _ Generator = (*ChatCompletion)(nil)

// NewChatCompletion wraps client for model.
func NewChatCompletion(client llm.LLMClient, model string) *ChatCompletion {
	return &ChatCompletion{client: client, model: model}
}

// Generate implements Generator.
func (g *ChatCompletion) Generate(ctx context.Context, prompt string, history []domain.Exchange, instructions string) (string, error) {
	messages := []llm.ChatMessage{{Role: domain.RoleSystem, Content: instructions}}
	for _, turn := range TrimHistory(history) {
		messages = append(messages, llm.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: domain.RoleUser, Content: prompt})

	temp, p, tokens := temperature, topP, maxTokens
	resp, err := g.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: &temp,
		TopP:        &p,
		MaxTokens:   &tokens,
	})
	if err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return "", &GenerationError{Reason: ReasonQuota, Err: err}
		}
		return "", Classify(ctx, err)
	}

	text := strings.TrimSpace(resp.FirstContent())
	if text == "" {
		return "", Malformed("empty completion")
	}
	return text, nil
}
