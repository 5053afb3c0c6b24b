package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// MockClient is a mock implementation of LLMClient. It answers with short
// casual lines so the game is playable without an API key.
type MockClient struct {
	calls atomic.Uint64
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

var mockLines = []string{
	"lol same",
	"wait what",
	"ok that's kinda funny",
	"idk tbh",
	"ngl i was thinking the same",
	"hmm maybe",
	"who even says that",
	"brb getting snacks",
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := m.generateMockResponse(req)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      m.estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{ID: "mock-gpt-3.5-turbo", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
	}, nil
}

// generateMockResponse rotates through canned lines; a greeting prompt gets a greeting.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}
	if strings.Contains(strings.ToLower(lastUser), "greet") || strings.Contains(strings.ToLower(lastUser), "say hi") {
		return "hey guys"
	}
	n := m.calls.Add(1) - 1
	return mockLines[n%uint64(len(mockLines))]
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}
