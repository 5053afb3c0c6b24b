// Package generator turns a prompt, recent exchanges and persona instructions
// into one line of chat text.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

// Generator produces a single chat line.
type Generator interface {
	// Generate returns the text for prompt. history holds prior exchanges,
	// oldest first. Failures are *GenerationError.
	Generate(ctx context.Context, prompt string, history []domain.Exchange, instructions string) (string, error)
}

// Reason classifies a generation failure.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonQuota     Reason = "quota"
	ReasonMalformed Reason = "malformed"
	ReasonUpstream  Reason = "upstream"
)

// GenerationError is returned for every failed generation.
type GenerationError struct {
	Reason Reason
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed: %s", e.Reason)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a GenerationError, inferring the reason.
func Classify(ctx context.Context, err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &GenerationError{Reason: ReasonTimeout, Err: err}
	case isQuota(err):
		return &GenerationError{Reason: ReasonQuota, Err: err}
	default:
		return &GenerationError{Reason: ReasonUpstream, Err: err}
	}
}

func isQuota(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "[429]") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted")
}

// Malformed reports an unusable upstream response.
func Malformed(detail string) *GenerationError {
	return &GenerationError{Reason: ReasonMalformed, Err: errors.New(detail)}
}

const (
	maxHistoryTurns = 4
	maxTurnLength   = 200
)

// Turn is one role-tagged message in a trimmed conversation.
type Turn struct {
	Role    string
	Content string
}

// TrimHistory flattens exchanges into turns, keeps the last few and drops
// overly long ones so the model stays in short-message register.
func TrimHistory(history []domain.Exchange) []Turn {
	turns := make([]Turn, 0, len(history)*2)
	for _, ex := range history {
		turns = append(turns,
			Turn{Role: domain.RoleUser, Content: ex.Prompt},
			Turn{Role: domain.RoleAssistant, Content: ex.Response},
		)
	}
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	out := turns[:0]
	for _, t := range turns {
		if utf8.RuneCountInString(t.Content) < maxTurnLength {
			out = append(out, t)
		}
	}
	return out
}
