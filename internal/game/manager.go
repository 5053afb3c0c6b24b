package game

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/registry"
)

// RoomInfo summarizes one live session.
type RoomInfo struct {
	ID      string   `json:"id"`
	Humans  int      `json:"humans"`
	Players []string `json:"players"`
}

// Manager maps room ids to sessions, creating them on first join and
// dropping them when the last human leaves.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	logger   *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(deps Deps) *Manager {
	deps = deps.withDefaults()
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		logger:   deps.Logger.With(zap.String("component", "game_manager")),
	}
}

// Join adds a human to room, creating the session if needed.
func (m *Manager) Join(ctx context.Context, room string, ch registry.Channel) (*Session, domain.Participant, error) {
	for {
		s := m.session(room)
		p, err := s.Join(ctx, ch)
		if errors.Is(err, ErrSessionClosed) {
			// Lost a race with the last leave; the closed session is being dropped.
			m.drop(s)
			continue
		}
		return s, p, err
	}
}

func (m *Manager) session(room string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[room]; ok {
		return s
	}
	s := newSession(room, m.deps)
	m.sessions[room] = s
	m.logger.Info("Session created", zap.String("room_id", room))
	return s
}

// Leave removes a human and drops the session once it is empty.
func (m *Manager) Leave(ctx context.Context, s *Session, id string) {
	if s.Leave(ctx, id) {
		m.drop(s)
	}
}

func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		m.logger.Info("Session dropped", zap.String("room_id", s.id))
	}
}

// Get returns the live session for room.
func (m *Manager) Get(room string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[room]
	return s, ok
}

// Rooms lists live sessions sorted by id.
func (m *Manager) Rooms() []RoomInfo {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]RoomInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, RoomInfo{ID: s.id, Humans: s.HumanCount(), Players: s.Roster()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown closes every session and waits for their simulated participants.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
