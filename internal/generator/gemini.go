package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

// ContentModel is the slice of the genai API Gemini uses. *genai.Models
// satisfies it.
type ContentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates lines with Google's Gemini API.
type Gemini struct {
	models ContentModel
	model  string
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini generator backed by the public API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewGeminiWithModels(client.Models, model), nil
}

// NewGeminiWithModels wraps an existing model handle.
func NewGeminiWithModels(models ContentModel, model string) *Gemini {
	return &Gemini{models: models, model: model}
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string, history []domain.Exchange, instructions string) (string, error) {
	var contents []*genai.Content
	for _, turn := range TrimHistory(history) {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		TopP:              genai.Ptr[float32](topP),
		MaxOutputTokens:   maxTokens,
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", &GenerationError{Reason: ReasonQuota, Err: err}
		}
		return "", Classify(ctx, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", Malformed("empty candidate")
	}
	return text, nil
}
