// Package game runs bot-or-not sessions: membership, chat relay, the
// simulated participant's lifecycle and the vote that ends a round.
package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/adapter/llm"
	"github.com/Ruqii/LLMPuzzle/internal/clock"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/generator"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
	"github.com/Ruqii/LLMPuzzle/internal/registry"
	"github.com/Ruqii/LLMPuzzle/internal/scheduler"
)

var (
	// ErrSessionClosed is returned when joining a session whose last human left.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidVote is returned for votes naming an unknown participant or the voter.
	ErrInvalidVote = errors.New("invalid vote")
	// ErrAlreadyVoted is returned for a second vote by the same participant.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrRoundOver is returned for votes after the result was announced.
	ErrRoundOver = errors.New("round is over")
)

// Recorder persists rounds. *service.Scoreboard satisfies it.
type Recorder interface {
	StartGame(ctx context.Context, game *domain.Game) error
	Record(ctx context.Context, result *domain.GameResult) error
}

type nopRecorder struct{}

func (nopRecorder) StartGame(context.Context, *domain.Game) error    { return nil }
func (nopRecorder) Record(context.Context, *domain.GameResult) error { return nil }

// Deps are shared by every session of a Manager.
type Deps struct {
	Generator generator.Generator
	Prompts   scheduler.Prompts
	// Policy must be safe for concurrent use; sessions share it.
	Policy    scheduler.Policy
	Recorder  Recorder
	Clock     clock.Clock
	Scheduler scheduler.Config
	// SelectPersona picks the profile of each new simulated participant.
	SelectPersona func() persona.Profile
	Registry      []registry.Option
	// ChatPhase is announced to clients in voting_start; zero skips the frame.
	ChatPhase time.Duration
	Logger    *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Generator == nil {
		d.Generator = generator.NewChatCompletion(llm.NewMockClient(), "mock")
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Policy == nil {
		d.Policy = scheduler.NewRandomPolicy(nil, nil)
	}
	if d.Prompts == nil {
		d.Prompts = persona.NewTemplates(nil, d.Logger)
	}
	if d.SelectPersona == nil {
		d.SelectPersona = RandomPersona(nil)
	}
	return d
}

// RandomPersona returns a concurrency-safe persona picker over rng.
func RandomPersona(rng *rand.Rand) func() persona.Profile {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var mu sync.Mutex
	return func() persona.Profile {
		mu.Lock()
		defer mu.Unlock()
		return persona.Select(rng)
	}
}
