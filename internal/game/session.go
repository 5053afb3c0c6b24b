package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
	"github.com/Ruqii/LLMPuzzle/internal/protocol"
	"github.com/Ruqii/LLMPuzzle/internal/registry"
	"github.com/Ruqii/LLMPuzzle/internal/ringbuf"
	"github.com/Ruqii/LLMPuzzle/internal/scheduler"
)

// HistoryWindow is how many human chat lines a session remembers.
const HistoryWindow = 5

type bot struct {
	participant domain.Participant
	profile     persona.Profile
	gameID      string
	active      bool
	sent        int
	done        chan struct{}
}

// Session is one chat room. It owns the registry, the shared chat window and
// at most one simulated participant at a time.
type Session struct {
	id   string
	reg  *registry.Registry
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	history     *ringbuf.Buffer[domain.ChatEvent]
	lastHuman   time.Time
	lastSpeaker string
	closed      bool
	bot         *bot
	names       map[string]bool
	votes       map[string]domain.Vote
	result      *domain.GameResult

	logger *zap.Logger
}

var _ scheduler.Room = (*Session)(nil)

func newSession(id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With(zap.String("room_id", id))
	return &Session{
		id:        id,
		reg:       registry.New(logger, deps.Registry...),
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		history:   ringbuf.New[domain.ChatEvent](HistoryWindow),
		lastHuman: deps.Clock.Now(),
		names:     make(map[string]bool),
		votes:     make(map[string]domain.Vote),
		logger:    logger.With(zap.String("component", "session")),
	}
}

// ID returns the room id.
func (s *Session) ID() string { return s.id }

// Roster returns display names in join order.
func (s *Session) Roster() []string { return s.reg.Roster() }

// Join registers a human bound to ch, announces it and brings in a
// simulated participant when none is active.
func (s *Session) Join(ctx context.Context, ch registry.Channel) (domain.Participant, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Participant{}, ErrSessionClosed
	}
	p, err := s.reg.Join(ch)
	if err != nil {
		s.mu.Unlock()
		return domain.Participant{}, err
	}
	s.names[p.DisplayName] = true
	spawn := s.bot == nil
	var b *bot
	if spawn {
		b = s.newBotLocked()
	}
	s.mu.Unlock()

	if err := s.reg.SendTo(ctx, p.ID, protocol.NewAssignID(p.DisplayName)); err != nil {
		s.logger.Warn("Failed to send assign_id", zap.String("participant_id", p.ID), zap.Error(err))
	}
	s.reg.Broadcast(ctx, fmt.Sprintf("🟢 %s joined the game!", p.DisplayName))
	s.pushRoster(ctx)

	if spawn {
		s.startBot(ctx, b)
	}
	return p, nil
}

func (s *Session) newBotLocked() *bot {
	p := s.reg.JoinSimulated()
	s.names[p.DisplayName] = true
	b := &bot{
		participant: p,
		profile:     s.deps.SelectPersona(),
		gameID:      uuid.New().String(),
		active:      true,
		done:        make(chan struct{}),
	}
	s.bot = b
	return b
}

func (s *Session) startBot(ctx context.Context, b *bot) {
	s.reg.Broadcast(ctx, fmt.Sprintf("🟢 %s joined the game!", b.participant.DisplayName))
	s.pushRoster(ctx)
	if s.deps.ChatPhase > 0 {
		msg := protocol.NewVotingStart(s.reg.Roster(), int(s.deps.ChatPhase/time.Second))
		if _, err := s.reg.BroadcastJSON(ctx, msg); err != nil {
			s.logger.Warn("Failed to announce voting", zap.Error(err))
		}
	}

	err := s.deps.Recorder.StartGame(ctx, &domain.Game{
		GameID:    b.gameID,
		RoomID:    s.id,
		Persona:   b.profile.Name,
		BotName:   b.participant.DisplayName,
		StartedAt: s.deps.Clock.Now(),
		Humans:    s.reg.HumanCount(),
	})
	if err != nil {
		s.logger.Warn("Failed to record game start", zap.String("game_id", b.gameID), zap.Error(err))
	}

	sched := scheduler.New(scheduler.Options{
		Self:      b.participant,
		Profile:   b.profile,
		Room:      s,
		Generator: s.deps.Generator,
		Prompts:   s.deps.Prompts,
		Policy:    s.deps.Policy,
		Clock:     s.deps.Clock,
		Config:    s.deps.Scheduler,
		Logger:    s.deps.Logger.With(zap.String("room_id", s.id)),
	})
	s.logger.Info("Simulated participant activated",
		zap.String("name", b.participant.DisplayName), zap.String("persona", b.profile.Name))

	go func() {
		defer close(b.done)
		reason := sched.Run(s.ctx)
		s.botExited(b, reason)
	}()
}

// botExited removes the simulated participant once its loop ends. It leaves
// silently; only the roster changes.
func (s *Session) botExited(b *bot, reason scheduler.ExitReason) {
	s.mu.Lock()
	b.active = false
	s.mu.Unlock()

	if err := s.reg.Leave(b.participant.ID); err != nil && !errors.Is(err, registry.ErrNotFound) {
		s.logger.Debug("Simulated participant already gone", zap.Error(err))
	}
	s.logger.Info("Simulated participant finished", zap.String("reason", string(reason)))

	if s.reg.HumanCount() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.pushRoster(ctx)
	}
}

// Message relays a human chat line.
func (s *Session) Message(ctx context.Context, p domain.Participant, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	now := s.deps.Clock.Now()
	s.history.Push(domain.ChatEvent{ParticipantID: p.ID, DisplayName: p.DisplayName, Text: text, At: now})
	s.lastHuman = now
	s.lastSpeaker = p.ID
	s.mu.Unlock()

	s.reg.Broadcast(ctx, fmt.Sprintf("%s: %s", p.DisplayName, text))
}

// Leave unregisters a human and announces it. It reports whether the
// session is now empty and closed.
func (s *Session) Leave(ctx context.Context, id string) bool {
	p, ok := s.reg.Get(id)
	if err := s.reg.Leave(id); err != nil {
		s.logger.Debug("Leave for unknown participant", zap.String("participant_id", id))
		return false
	}

	s.mu.Lock()
	empty := s.reg.HumanCount() == 0
	if empty {
		s.closed = true
	}
	s.mu.Unlock()

	if empty {
		s.cancel()
		s.logger.Info("Last human left, stopping session")
		return true
	}

	if ok {
		s.reg.Broadcast(ctx, fmt.Sprintf("🔴 %s left the game.", p.DisplayName))
	}
	s.pushRoster(ctx)
	s.maybeResolve(ctx)
	return false
}

// Announce broadcasts an operator notice.
func (s *Session) Announce(ctx context.Context, text string) int {
	return s.reg.Broadcast(ctx, "📢 "+text)
}

// Close stops the simulated participant and waits for it, or for ctx.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	b := s.bot
	s.mu.Unlock()

	s.cancel()
	if b == nil {
		return nil
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) pushRoster(ctx context.Context) {
	if _, err := s.reg.BroadcastJSON(ctx, protocol.NewUpdatePlayers(s.reg.Roster())); err != nil {
		s.logger.Warn("Failed to push roster", zap.Error(err))
	}
}

// HumanCount implements scheduler.Room.
func (s *Session) HumanCount() int { return s.reg.HumanCount() }

// RecentMessages implements scheduler.Room.
func (s *Session) RecentMessages() []domain.ChatEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Items()
}

// LastHumanMessageAt implements scheduler.Room.
func (s *Session) LastHumanMessageAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHuman
}

// LastSpeakerID implements scheduler.Room.
func (s *Session) LastSpeakerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSpeaker
}

// Live implements scheduler.Room.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Say implements scheduler.Room.
func (s *Session) Say(ctx context.Context, speaker domain.Participant, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastSpeaker = speaker.ID
	if s.bot != nil && s.bot.participant.ID == speaker.ID {
		s.bot.sent++
	}
	s.mu.Unlock()

	s.reg.Broadcast(ctx, fmt.Sprintf("%s: %s", speaker.DisplayName, text))
	return nil
}
