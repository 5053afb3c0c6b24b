package llm

import (
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "BOTORNOT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the BOTORNOT_MODE environment variable.
// If BOTORNOT_MODE=MOCK, returns a MockClient; otherwise returns a real Client.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) LLMClient {
	if os.Getenv(EnvMode) == ModeMock {
		if logger != nil {
			logger.Info("BOTORNOT_MODE=MOCK detected, using mock LLM client")
		}
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
