// Package scheduler drives when and what a simulated participant says.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/clock"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/generator"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
)

// Room is the session as seen by a scheduler.
type Room interface {
	HumanCount() int
	// RecentMessages returns the human chat window, oldest first.
	RecentMessages() []domain.ChatEvent
	// LastHumanMessageAt is the time of the newest human line, or the session
	// start when nobody has spoken.
	LastHumanMessageAt() time.Time
	// LastSpeakerID is the participant id of whoever spoke last.
	LastSpeakerID() string
	// Live reports whether the session still wants simulated messages.
	Live() bool
	// Say broadcasts text on behalf of speaker.
	Say(ctx context.Context, speaker domain.Participant, text string) error
}

// Span is an inclusive duration range.
type Span struct {
	Min time.Duration
	Max time.Duration
}

// Config holds the scheduler timings.
type Config struct {
	PollInterval    time.Duration
	SilenceMargin   time.Duration
	GenerateTimeout time.Duration
	TypingPerChar   time.Duration
	TypingCap       time.Duration
	CorrectionPause Span
	RetypePause     Span
}

// DefaultConfig returns the canonical timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		SilenceMargin:   15 * time.Second,
		GenerateTimeout: 10 * time.Second,
		TypingPerChar:   50 * time.Millisecond,
		TypingCap:       3 * time.Second,
		CorrectionPause: Span{500 * time.Millisecond, 1200 * time.Millisecond},
		RetypePause:     Span{time.Second, 2500 * time.Millisecond},
	}
}

// ExitReason says why Run returned.
type ExitReason string

const (
	ExitExhausted ExitReason = "exhausted"
	ExitClosed    ExitReason = "room_closed"
	ExitCancelled ExitReason = "cancelled"
)

// Options wires a Scheduler.
type Options struct {
	Self      domain.Participant
	Profile   persona.Profile
	Room      Room
	Generator generator.Generator
	Prompts   Prompts
	Policy    Policy
	Clock     clock.Clock
	Config    Config
	Logger    *zap.Logger
}

// Scheduler runs the turn-taking loop of one simulated participant.
// Run must be called at most once.
type Scheduler struct {
	self    domain.Participant
	profile persona.Profile
	room    Room
	gen     generator.Generator
	prompts Prompts
	policy  Policy
	clock   clock.Clock
	cfg     Config
	state   *State
	logger  *zap.Logger
}

// New builds a scheduler. Zero Config fields take their defaults.
func New(opts Options) *Scheduler {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SilenceMargin <= 0 {
		cfg.SilenceMargin = def.SilenceMargin
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = def.GenerateTimeout
	}
	if cfg.TypingPerChar <= 0 {
		cfg.TypingPerChar = def.TypingPerChar
	}
	if cfg.TypingCap <= 0 {
		cfg.TypingCap = def.TypingCap
	}
	if cfg.CorrectionPause.Max <= 0 {
		cfg.CorrectionPause = def.CorrectionPause
	}
	if cfg.RetypePause.Max <= 0 {
		cfg.RetypePause = def.RetypePause
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	pol := opts.Policy
	if pol == nil {
		pol = NewRandomPolicy(nil, nil)
	}
	return &Scheduler{
		self:    opts.Self,
		profile: opts.Profile,
		room:    opts.Room,
		gen:     opts.Generator,
		prompts: opts.Prompts,
		policy:  pol,
		clock:   clk,
		cfg:     cfg,
		state:   NewState(),
		logger: logger.With(
			zap.String("component", "scheduler"),
			zap.String("participant_id", opts.Self.ID),
			zap.String("persona", opts.Profile.Name),
		),
	}
}

// Sent returns how many messages were broadcast so far. It is only safe to
// call from the loop's goroutine or after Run returned.
func (s *Scheduler) Sent() int {
	return s.state.Sent
}

// State exposes the loop state for inspection after Run returned.
func (s *Scheduler) State() *State {
	return s.state
}

// Run polls until the budget is spent, the room stops being live or ctx ends.
func (s *Scheduler) Run(ctx context.Context) ExitReason {
	s.logger.Info("Scheduler started", zap.Int("max_messages", s.profile.MaxMessages))
	reason := s.loop(ctx)
	s.logger.Info("Scheduler stopped", zap.String("reason", string(reason)), zap.Int("sent", s.state.Sent))
	return reason
}

func (s *Scheduler) loop(ctx context.Context) ExitReason {
	for s.state.Sent < s.profile.MaxMessages {
		if err := s.clock.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return ExitCancelled
		}
		if !s.room.Live() {
			return ExitClosed
		}
		s.Tick(ctx)
		if ctx.Err() != nil {
			return ExitCancelled
		}
	}
	return ExitExhausted
}

// Tick runs one scheduling step and returns the decision taken.
func (s *Scheduler) Tick(ctx context.Context) Decision {
	skip := Decision{Kind: DecisionSkip}
	if s.state.Sent >= s.profile.MaxMessages {
		return skip
	}

	if s.state.Greeted {
		if s.policy.Roll(s.profile.Name, SituationHesitate) {
			return skip
		}
		if s.room.LastSpeakerID() == s.self.ID && s.policy.Roll(s.profile.Name, SituationAvoidDoubleTurn) {
			return skip
		}
		if err := s.clock.Sleep(ctx, s.policy.Between(s.profile.Delay.Min, s.profile.Delay.Max)); err != nil {
			return skip
		}
		if !s.room.Live() {
			return skip
		}
	}

	d := Decide(s.input(), s.policy, s.prompts)
	if d.Kind == DecisionSkip {
		return d
	}
	s.logger.Debug("Decision made", zap.String("kind", string(d.Kind)))
	s.state.apply(d.Kind)
	s.speak(ctx, d.Prompt)
	return d
}

func (s *Scheduler) input() Input {
	return Input{
		Profile:        s.profile,
		Greeted:        s.state.Greeted,
		LastWasStarter: s.state.LastWasStarter,
		Humans:         s.room.HumanCount(),
		Silence:        s.clock.Now().Sub(s.room.LastHumanMessageAt()),
		SilenceMargin:  s.cfg.SilenceMargin,
		History:        s.room.RecentMessages(),
	}
}

func (s *Scheduler) speak(ctx context.Context, prompt string) {
	text := s.generate(ctx, prompt)
	text = humanize(text, s.profile.Name, s.policy)

	if err := s.clock.Sleep(ctx, typingDelay(text, s.cfg.TypingPerChar, s.cfg.TypingCap)); err != nil {
		return
	}
	if !s.say(ctx, text) {
		return
	}
	s.state.Sent++
	s.state.remember(prompt, text)

	if s.state.Sent >= s.profile.MaxMessages || !s.policy.Roll(s.profile.Name, SituationCorrection) {
		return
	}
	if err := s.clock.Sleep(ctx, s.policy.Between(s.cfg.CorrectionPause.Min, s.cfg.CorrectionPause.Max)); err != nil {
		return
	}
	if s.say(ctx, corrections[s.policy.Intn(len(corrections))]) {
		s.state.Sent++
	}
	_ = s.clock.Sleep(ctx, s.policy.Between(s.cfg.RetypePause.Min, s.cfg.RetypePause.Max))
}

// generate calls the generator under its own timeout and substitutes a
// filler line on any failure.
func (s *Scheduler) generate(ctx context.Context, prompt string) string {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	text, err := s.gen.Generate(genCtx, prompt, s.state.Exchanges(), s.profile.Instructions())
	if err == nil && strings.TrimSpace(text) == "" {
		err = generator.Malformed("empty response")
	}
	if err != nil {
		reason := generator.ReasonUpstream
		var genErr *generator.GenerationError
		if errors.As(err, &genErr) {
			reason = genErr.Reason
		}
		s.logger.Warn("Generation failed, using fallback", zap.String("reason", string(reason)), zap.Error(err))
		return fallbacks[s.policy.Intn(len(fallbacks))]
	}
	return strings.TrimSpace(text)
}

// say broadcasts text if the session is still live.
func (s *Scheduler) say(ctx context.Context, text string) bool {
	if ctx.Err() != nil || !s.room.Live() {
		return false
	}
	if err := s.room.Say(ctx, s.self, text); err != nil {
		s.logger.Warn("Failed to send simulated message", zap.Error(err))
		return false
	}
	return true
}
