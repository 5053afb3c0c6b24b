package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Ruqii/LLMPuzzle/internal/clock"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/generator"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRoom struct {
	mu        sync.Mutex
	humans    int
	history   []domain.ChatEvent
	lastHuman time.Time
	lastID    string
	live      bool
	said      []string
	sayErr    error
}

func newFakeRoom(humans int) *fakeRoom {
	return &fakeRoom{humans: humans, lastHuman: epoch, live: true}
}

func (r *fakeRoom) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humans
}

func (r *fakeRoom) RecentMessages() []domain.ChatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChatEvent(nil), r.history...)
}

func (r *fakeRoom) LastHumanMessageAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHuman
}

func (r *fakeRoom) LastSpeakerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID
}

func (r *fakeRoom) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *fakeRoom) setLive(v bool) {
	r.mu.Lock()
	r.live = v
	r.mu.Unlock()
}

func (r *fakeRoom) Say(_ context.Context, speaker domain.Participant, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sayErr != nil {
		return r.sayErr
	}
	r.said = append(r.said, text)
	r.lastID = speaker.ID
	return nil
}

func (r *fakeRoom) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.said...)
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	prompts []string
	history [][]domain.Exchange
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, history []domain.Exchange, _ string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.history = append(g.history, history)
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return "", generator.Classify(ctx, ctx.Err())
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// scriptedPolicy fires only the listed situations and always takes the
// lowest choice.
type scriptedPolicy map[Situation]bool

func (p scriptedPolicy) Roll(_ string, s Situation) bool { return p[s] }
func (scriptedPolicy) Intn(int) int                      { return 0 }
func (scriptedPolicy) Between(lo, _ time.Duration) time.Duration {
	return lo
}

type fixture struct {
	room  *fakeRoom
	gen   *fakeGenerator
	clock *clock.Fake
	sched *Scheduler
}

func newFixture(t *testing.T, profile persona.Profile, humans int, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		room:  newFakeRoom(humans),
		gen:   &fakeGenerator{reply: "hey whats up"},
		clock: clock.NewFake(epoch),
	}
	f.sched = New(Options{
		Self:      domain.Participant{ID: "sim_1", DisplayName: "Participant 3", Kind: domain.ParticipantKindSimulated},
		Profile:   profile,
		Room:      f.room,
		Generator: f.gen,
		Prompts:   persona.NewTemplates(nil, nil),
		Policy:    policy,
		Clock:     f.clock,
	})
	return f
}

func fixedProfile(name string, budget int) persona.Profile {
	spec, _ := persona.Lookup(name)
	p := spec.Resolve(rand.New(rand.NewPCG(1, 1)))
	p.MaxMessages = budget
	return p
}

func TestRunNeverExceedsBudget(t *testing.T) {
	for _, name := range persona.Names {
		for seed := uint64(0); seed < 20; seed++ {
			rng := rand.New(rand.NewPCG(seed, 99))
			profile := persona.Resolve(name, rng)
			f := newFixture(t, profile, 1, NewRandomPolicy(DefaultTable(), rng))
			f.room.history = []domain.ChatEvent{
				{ParticipantID: "h1", Text: "anyone here"},
				{ParticipantID: "h1", Text: "what games do you play"},
				{ParticipantID: "h1", Text: "i like chess"},
			}

			reason := f.sched.Run(context.Background())

			assert.Equal(t, ExitExhausted, reason)
			assert.Len(t, f.room.messages(), profile.MaxMessages, "persona %s seed %d", name, seed)
			assert.LessOrEqual(t, f.sched.Sent(), profile.MaxMessages)
		}
	}
}

func TestCorrectionCountsTowardBudget(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 3), 1, scriptedPolicy{SituationCorrection: true})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "hi"}}

	reason := f.sched.Run(context.Background())

	assert.Equal(t, ExitExhausted, reason)
	msgs := f.room.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hey whats up", msgs[0])
	assert.Contains(t, corrections, msgs[1])
	assert.Equal(t, "hey whats up", msgs[2])
}

func TestShySilenceBreakAfterEightySeconds(t *testing.T) {
	profile := fixedProfile(persona.Shy, 5)
	f := newFixture(t, profile, 1, scriptedPolicy{})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "hello?"}}

	require.Equal(t, DecisionGreeting, f.sched.Tick(context.Background()).Kind)

	f.room.lastHuman = f.clock.Now()
	f.clock.Advance(80 * time.Second)
	d := f.sched.Tick(context.Background())

	assert.Equal(t, DecisionSilenceBreak, d.Kind)
	assert.Equal(t, persona.NewTemplates(nil, nil).Prompt(persona.KindSilence, persona.Shy), d.Prompt)
	assert.False(t, f.sched.State().LastWasStarter)
}

func TestGreetingVariant(t *testing.T) {
	tpl := persona.NewTemplates(nil, nil)

	group := newFixture(t, fixedProfile(persona.Nerdy, 5), 2, scriptedPolicy{})
	d := group.sched.Tick(context.Background())
	assert.Equal(t, DecisionGreeting, d.Kind)
	assert.Equal(t, tpl.Prompt(persona.KindGreeting, persona.Nerdy), d.Prompt)

	solo := newFixture(t, fixedProfile(persona.Nerdy, 5), 1, scriptedPolicy{})
	d = solo.sched.Tick(context.Background())
	assert.Equal(t, persona.OneOnOneGreeting, d.Prompt)

	assert.Equal(t, 1, solo.sched.Sent())
	assert.True(t, solo.sched.State().Greeted)
	assert.True(t, solo.sched.State().LastWasStarter)
}

func TestNoBroadcastAfterRoomCloses(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 10), 1, scriptedPolicy{})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "yo"}}
	f.clock.OnSleep(func(time.Duration) {
		if len(f.room.messages()) == 2 {
			f.room.setLive(false)
		}
	})

	reason := f.sched.Run(context.Background())

	assert.Equal(t, ExitClosed, reason)
	assert.Len(t, f.room.messages(), 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 10), 1, scriptedPolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	f.clock.OnSleep(func(time.Duration) {
		if len(f.room.messages()) == 1 {
			cancel()
		}
	})

	done := make(chan ExitReason)
	go func() { done <- f.sched.Run(ctx) }()

	select {
	case reason := <-done:
		assert.Equal(t, ExitCancelled, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Len(t, f.room.messages(), 1)
}

func TestSameSeedSameChoices(t *testing.T) {
	run := func() ([]string, []string) {
		rng := rand.New(rand.NewPCG(42, 7))
		f := newFixture(t, fixedProfile(persona.Optimistic, 8), 2, NewRandomPolicy(DefaultTable(), rng))
		f.room.history = []domain.ChatEvent{
			{ParticipantID: "h1", Text: "a"},
			{ParticipantID: "h2", Text: "b"},
			{ParticipantID: "h1", Text: "c"},
			{ParticipantID: "h2", Text: "d"},
		}
		f.sched.Run(context.Background())
		return f.gen.prompts, f.room.messages()
	}

	prompts1, said1 := run()
	prompts2, said2 := run()
	if diff := cmp.Diff(prompts1, prompts2); diff != "" {
		t.Fatalf("prompt sequence differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(said1, said2); diff != "" {
		t.Fatalf("broadcast sequence differs (-first +second):\n%s", diff)
	}
}

func TestGenerationFailureUsesFallback(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Shy, 3), 1, scriptedPolicy{})
	f.gen.err = &generator.GenerationError{Reason: generator.ReasonQuota, Err: errors.New("429")}

	d := f.sched.Tick(context.Background())

	assert.Equal(t, DecisionGreeting, d.Kind)
	require.Len(t, f.room.messages(), 1)
	assert.Contains(t, fallbacks, f.room.messages()[0])
	assert.Equal(t, 1, f.sched.Sent())
}

func TestGenerationTimeoutIsIndependentOfAdapter(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Shy, 3), 1, scriptedPolicy{})
	f.sched.cfg.GenerateTimeout = 20 * time.Millisecond
	f.gen.block = true

	f.sched.Tick(context.Background())

	require.Len(t, f.room.messages(), 1)
	assert.Contains(t, fallbacks, f.room.messages()[0])
}

func TestFailedSendIsNotCounted(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Shy, 3), 1, scriptedPolicy{})
	f.room.sayErr = errors.New("closed")

	f.sched.Tick(context.Background())

	assert.Equal(t, 0, f.sched.Sent())
	assert.Empty(t, f.sched.State().Exchanges())
}

func TestExchangeHistoryIsCapped(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 10), 1, scriptedPolicy{})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "hi"}}

	f.sched.Run(context.Background())

	assert.Len(t, f.sched.State().Exchanges(), ExchangeWindow)
	for _, h := range f.gen.history {
		assert.LessOrEqual(t, len(h), ExchangeWindow)
	}
}

func TestHesitationSkipsTick(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 5), 1, scriptedPolicy{SituationHesitate: true})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "hi"}}

	require.Equal(t, DecisionGreeting, f.sched.Tick(context.Background()).Kind)
	assert.Equal(t, DecisionSkip, f.sched.Tick(context.Background()).Kind)
	assert.Len(t, f.room.messages(), 1)
}

func TestAvoidDoubleTurn(t *testing.T) {
	f := newFixture(t, fixedProfile(persona.Chatty, 5), 1, scriptedPolicy{SituationAvoidDoubleTurn: true})
	f.room.history = []domain.ChatEvent{{ParticipantID: "h1", Text: "hi"}}

	f.sched.Tick(context.Background())
	assert.Equal(t, DecisionSkip, f.sched.Tick(context.Background()).Kind)

	f.room.lastID = "h1"
	assert.Equal(t, DecisionReply, f.sched.Tick(context.Background()).Kind)
}
