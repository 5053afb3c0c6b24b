package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/adapter/llm"
	"github.com/Ruqii/LLMPuzzle/internal/cache"
	"github.com/Ruqii/LLMPuzzle/internal/config"
	"github.com/Ruqii/LLMPuzzle/internal/generator"
	"github.com/Ruqii/LLMPuzzle/internal/logging"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
)

// Response generator providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

func loadConfig() *config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func newLLMClient(cfg *config.Config, logger *zap.Logger) llm.LLMClient {
	if strings.EqualFold(cfg.LLMProvider, ProviderMock) {
		return llm.NewMockClient()
	}
	return llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout, logger)
}

// newGenerator picks the response generator named by LLM_PROVIDER.
func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (generator.Generator, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case ProviderOpenAI, "", ProviderMock:
		return generator.NewChatCompletion(newLLMClient(cfg, logger), cfg.LLMModel), nil
	case ProviderGemini:
		model := cfg.LLMModel
		if strings.HasPrefix(model, "gpt-") {
			model = ""
		}
		gen, err := generator.NewGemini(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini generator: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// newCache connects to redis when REDIS_URL is set and falls back to memory.
func newCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, using in-memory stats cache")
		return cache.NewMemoryCache(nil), nil
	}
	c, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return c, nil
}

// newTemplates loads the prompt table. The returned watcher is nil unless a
// prompts file is configured.
func newTemplates(cfg *config.Config, logger *zap.Logger) (*persona.Templates, *persona.Watcher, error) {
	if cfg.PromptsFile == "" {
		return persona.NewTemplates(nil, logger), nil, nil
	}
	table, err := persona.LoadTable(cfg.PromptsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	templates := persona.NewTemplates(table, logger)
	watcher, err := persona.NewWatcher(cfg.PromptsFile, templates, logger)
	if err != nil {
		logger.Warn("Prompt hot reload disabled", zap.String("path", cfg.PromptsFile), zap.Error(err))
		return templates, nil, nil
	}
	return templates, watcher, nil
}
