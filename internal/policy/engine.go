// Package policy evaluates the presence probabilities of simulated
// participants with OPA.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/scheduler"
)

// Engine is the OPA policy engine. Evaluations are memoized per
// (persona, situation) since the module is static once prepared.
type Engine struct {
	query  rego.PreparedEvalQuery
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[cacheKey]float64
}

type cacheKey struct {
	persona   string
	situation scheduler.Situation
}

var _ scheduler.Table = (*Engine)(nil)

// NewEngine prepares policyContent for evaluation.
func NewEngine(ctx context.Context, policyContent string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := rego.New(
		rego.Query("data.presence_policy.probability"),
		rego.Module("presence_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{
		query:  query,
		logger: logger.With(zap.String("component", "policy")),
		cache:  make(map[cacheKey]float64),
	}, nil
}

// LoadEngine prepares the policy at path, or DefaultPolicy when path is empty.
func LoadEngine(ctx context.Context, path string, logger *zap.Logger) (*Engine, error) {
	content := DefaultPolicy
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy: %w", err)
		}
		content = string(data)
	}
	return NewEngine(ctx, content, logger)
}

// Evaluate returns the probability for persona in situation.
func (e *Engine) Evaluate(ctx context.Context, persona string, situation scheduler.Situation) (float64, error) {
	input := map[string]interface{}{
		"persona":   persona,
		"situation": string(situation),
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The module declares a default, so an empty result means "never".
		return 0, nil
	}

	return toProbability(results[0].Expressions[0].Value)
}

// Probability implements scheduler.Table. Evaluation errors are logged and
// read as zero so the caller's behavior stays quiet rather than erratic.
func (e *Engine) Probability(persona string, situation scheduler.Situation) float64 {
	key := cacheKey{persona: persona, situation: situation}
	e.mu.RLock()
	p, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return p
	}

	p, err := e.Evaluate(context.Background(), persona, situation)
	if err != nil {
		e.logger.Warn("Policy evaluation failed",
			zap.String("persona", persona), zap.String("situation", string(situation)), zap.Error(err))
		return 0
	}

	e.mu.Lock()
	e.cache[key] = p
	e.mu.Unlock()
	return p
}

func toProbability(val interface{}) (float64, error) {
	var p float64
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid probability %q: %w", v, err)
		}
		p = f
	case float64:
		p = v
	case int:
		p = float64(v)
	default:
		return 0, fmt.Errorf("unexpected return type %T", val)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("probability %v out of range", p)
	}
	return p, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package presence_policy

default probability = 0.0

base_probabilities := {
	"hesitate": 0.5,
	"avoid_double_turn": 0.7,
	"reply_flavor": 0.2,
	"style_hint": 0.5,
	"reaction": 0.1,
	"self_interrupt": 0.12,
	"correction": 0.15,
}

# Distractible personas sometimes answer an older message.
persona_probabilities := {
	"chatty": {"older_reply": 0.4},
	"sarcastic": {"older_reply": 0.4},
	"suspicious": {"older_reply": 0.4},
	"nerdy": {"older_reply": 0.2},
	"optimistic": {"older_reply": 0.2},
}

probability = p {
	p := persona_probabilities[input.persona][input.situation]
}

probability = p {
	not persona_probabilities[input.persona][input.situation]
	p := base_probabilities[input.situation]
}
`
