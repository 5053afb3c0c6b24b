package game

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/clock"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
	"github.com/Ruqii/LLMPuzzle/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type recordingChannel struct {
	mu     sync.Mutex
	frames []string
	closed bool
}

func (c *recordingChannel) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(data))
	return nil
}

func (c *recordingChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingChannel) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		if !strings.HasPrefix(f, "{") {
			out = append(out, f)
		}
	}
	return out
}

func (c *recordingChannel) frameOfType(typ string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var last map[string]any
	for _, f := range c.frames {
		var m map[string]any
		if json.Unmarshal([]byte(f), &m) == nil && m["type"] == typ {
			last = m
		}
	}
	return last
}

type fakeRecorder struct {
	mu      sync.Mutex
	started []*domain.Game
	results []*domain.GameResult
}

func (r *fakeRecorder) StartGame(_ context.Context, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, g)
	return nil
}

func (r *fakeRecorder) Record(_ context.Context, res *domain.GameResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type cannedGenerator string

func (g cannedGenerator) Generate(context.Context, string, []domain.Exchange, string) (string, error) {
	return string(g), nil
}

func shyProfile(budget int) persona.Profile {
	p := persona.Resolve(persona.Shy, rand.New(rand.NewPCG(1, 1)))
	p.MaxMessages = budget
	return p
}

// quietDeps keeps the simulated participant asleep so tests control the room.
func quietDeps(rec Recorder) Deps {
	return Deps{
		Generator:     cannedGenerator("lol"),
		Policy:        scheduler.NewRandomPolicy(scheduler.StaticTable{}, rand.New(rand.NewPCG(1, 2))),
		Recorder:      rec,
		Clock:         clock.Real{},
		Scheduler:     scheduler.Config{PollInterval: time.Hour},
		SelectPersona: func() persona.Profile { return shyProfile(3) },
		ChatPhase:     2 * time.Minute,
		Logger:        zap.NewNop(),
	}
}

func newManager(t *testing.T, deps Deps) *Manager {
	t.Helper()
	m := NewManager(deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func TestJoinAssignsNamesAndSpawnsOneBot(t *testing.T) {
	rec := &fakeRecorder{}
	m := newManager(t, quietDeps(rec))
	ctx := context.Background()

	ch1 := &recordingChannel{}
	s, p1, err := m.Join(ctx, "lobby", ch1)
	require.NoError(t, err)
	assert.Equal(t, "Participant 1", p1.DisplayName)

	assert.Equal(t, "Participant 1", ch1.frameOfType("assign_id")["chat_id"])
	assert.Equal(t, []string{"🟢 Participant 1 joined the game!", "🟢 Participant 2 joined the game!"}, ch1.texts())
	start := ch1.frameOfType("voting_start")
	require.NotNil(t, start)
	assert.Equal(t, float64(120), start["seconds"])

	ch2 := &recordingChannel{}
	_, p3, err := m.Join(ctx, "lobby", ch2)
	require.NoError(t, err)
	assert.Equal(t, "Participant 3", p3.DisplayName)

	if diff := cmp.Diff([]string{"Participant 1", "Participant 2", "Participant 3"}, s.Roster()); diff != "" {
		t.Fatalf("roster mismatch (-want +got):\n%s", diff)
	}
	players := ch2.frameOfType("update_players")["players"]
	assert.Len(t, players, 3)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.started, 1)
	assert.Equal(t, persona.Shy, rec.started[0].Persona)
	assert.Equal(t, "Participant 2", rec.started[0].BotName)
}

func TestMessageRelayAndHistoryCap(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	ch1, ch2 := &recordingChannel{}, &recordingChannel{}
	s, p1, err := m.Join(ctx, "lobby", ch1)
	require.NoError(t, err)
	_, _, err = m.Join(ctx, "lobby", ch2)
	require.NoError(t, err)

	s.Message(ctx, p1, "  hello there  ")
	s.Message(ctx, p1, "   ")

	assert.Contains(t, ch2.texts(), "Participant 1: hello there")
	assert.Equal(t, p1.ID, s.LastSpeakerID())

	for i := 0; i < 8; i++ {
		s.Message(ctx, p1, "spam")
	}
	assert.Len(t, s.RecentMessages(), HistoryWindow)
}

func TestHandleFrames(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	ch := &recordingChannel{}
	s, p, err := m.Join(ctx, "lobby", ch)
	require.NoError(t, err)

	s.Handle(ctx, p, []byte("plain words"))
	s.Handle(ctx, p, []byte(`{"type":"chat","text":"json words"}`))
	s.Handle(ctx, p, []byte(`{"type":"dance"}`))

	texts := ch.texts()
	assert.Contains(t, texts, "Participant 1: plain words")
	assert.Contains(t, texts, "Participant 1: json words")
	assert.Equal(t, "invalid_message", ch.frameOfType("error")["code"])
}

func TestVotingHumansWin(t *testing.T) {
	rec := &fakeRecorder{}
	m := newManager(t, quietDeps(rec))
	ctx := context.Background()

	ch1, ch3 := &recordingChannel{}, &recordingChannel{}
	s, p1, err := m.Join(ctx, "lobby", ch1)
	require.NoError(t, err)
	_, p3, err := m.Join(ctx, "lobby", ch3)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Vote(ctx, p1, "Participant 1"), ErrInvalidVote)
	assert.ErrorIs(t, s.Vote(ctx, p1, "Nobody"), ErrInvalidVote)

	require.NoError(t, s.Vote(ctx, p1, "Participant 2"))
	assert.ErrorIs(t, s.Vote(ctx, p1, "Participant 3"), ErrAlreadyVoted)
	assert.Nil(t, ch1.frameOfType("voting_result"))

	s.Handle(ctx, p3, []byte(`{"type":"vote","vote_for":"Participant 2"}`))

	result := ch3.frameOfType("voting_result")
	require.NotNil(t, result)
	assert.Equal(t, "Humans", result["winner"])
	assert.Equal(t, "Participant 2", result["ai_nickname"])

	assert.ErrorIs(t, s.Vote(ctx, p3, "Participant 1"), ErrRoundOver)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.results, 1)
	assert.Equal(t, domain.WinnerHumans, rec.results[0].Winner)
	assert.Len(t, rec.results[0].Votes, 2)
}

func TestVotingTieGoesToAI(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	s, p1, err := m.Join(ctx, "lobby", &recordingChannel{})
	require.NoError(t, err)
	_, p3, err := m.Join(ctx, "lobby", &recordingChannel{})
	require.NoError(t, err)

	require.NoError(t, s.Vote(ctx, p1, "Participant 2"))
	require.NoError(t, s.Vote(ctx, p3, "Participant 1"))

	require.NotNil(t, s.Result())
	assert.Equal(t, domain.WinnerAI, s.Result().Winner)
}

func TestLeaveResolvesPendingVote(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	s, p1, err := m.Join(ctx, "lobby", &recordingChannel{})
	require.NoError(t, err)
	_, p3, err := m.Join(ctx, "lobby", &recordingChannel{})
	require.NoError(t, err)

	require.NoError(t, s.Vote(ctx, p1, "Participant 2"))
	m.Leave(ctx, s, p3.ID)

	require.NotNil(t, s.Result())
	assert.Equal(t, domain.WinnerHumans, s.Result().Winner)
}

func TestLastLeaveClosesSession(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	ch1, ch2 := &recordingChannel{}, &recordingChannel{}
	s, p1, err := m.Join(ctx, "lobby", ch1)
	require.NoError(t, err)
	_, p3, err := m.Join(ctx, "lobby", ch2)
	require.NoError(t, err)

	m.Leave(ctx, s, p1.ID)
	assert.Contains(t, ch2.texts(), "🔴 Participant 1 left the game.")
	assert.True(t, ch1.closed)
	assert.True(t, s.Live())

	m.Leave(ctx, s, p3.ID)
	assert.False(t, s.Live())
	_, ok := m.Get("lobby")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Say(ctx, domain.Participant{ID: "sim"}, "hi"), ErrSessionClosed)

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Close(closeCtx))

	_, _, err = m.Join(ctx, "lobby", &recordingChannel{})
	require.NoError(t, err)
	next, ok := m.Get("lobby")
	require.True(t, ok)
	assert.NotSame(t, s, next)
}

func TestSimulatedParticipantLeavesSilentlyWhenExhausted(t *testing.T) {
	deps := quietDeps(nil)
	deps.Clock = clock.NewFake(time.Now())
	deps.Scheduler = scheduler.Config{PollInterval: 5 * time.Second}
	deps.SelectPersona = func() persona.Profile { return shyProfile(2) }
	m := newManager(t, deps)
	ctx := context.Background()

	ch := &recordingChannel{}
	s, _, err := m.Join(ctx, "lobby", ch)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(s.Roster()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var botLines int
	for _, text := range ch.texts() {
		assert.NotContains(t, text, "left the game")
		if strings.HasPrefix(text, "Participant 2: ") {
			botLines++
		}
	}
	assert.Equal(t, 2, botLines)
	assert.Eventually(t, func() bool {
		players, _ := ch.frameOfType("update_players")["players"].([]any)
		return len(players) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRooms(t *testing.T) {
	m := newManager(t, quietDeps(nil))
	ctx := context.Background()

	_, _, err := m.Join(ctx, "b", &recordingChannel{})
	require.NoError(t, err)
	_, _, err = m.Join(ctx, "a", &recordingChannel{})
	require.NoError(t, err)

	rooms := m.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, 1, rooms[0].Humans)
	assert.Equal(t, []string{"Participant 1", "Participant 2"}, rooms[0].Players)
}
