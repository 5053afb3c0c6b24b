package scheduler

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
)

type stubPrompts map[persona.Kind]string

func (s stubPrompts) Prompt(kind persona.Kind, _ string) string { return s[kind] }

var prompts = stubPrompts{
	persona.KindGreeting: "greet",
	persona.KindSilence:  "break silence",
	persona.KindReply:    "reply to",
	persona.KindStarter:  "start topic",
}

func history(texts ...string) []domain.ChatEvent {
	out := make([]domain.ChatEvent, len(texts))
	for i, text := range texts {
		out[i] = domain.ChatEvent{ParticipantID: "h", Text: text}
	}
	return out
}

func TestDecidePriority(t *testing.T) {
	shy := fixedProfile(persona.Shy, 4)

	tests := []struct {
		name string
		in   Input
		want DecisionKind
	}{
		{"first action greets", Input{Profile: shy, Humans: 1}, DecisionGreeting},
		{"silence beats history", Input{Profile: shy, Greeted: true, Silence: 80 * time.Second, SilenceMargin: 15 * time.Second, History: history("x")}, DecisionSilenceBreak},
		{"under threshold replies", Input{Profile: shy, Greeted: true, Silence: 70 * time.Second, SilenceMargin: 15 * time.Second, History: history("x")}, DecisionReply},
		{"no history starts topic", Input{Profile: shy, Greeted: true}, DecisionStarter},
		{"no double starter", Input{Profile: shy, Greeted: true, LastWasStarter: true}, DecisionSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in, scriptedPolicy{}, prompts).Kind)
		})
	}
}

func TestDecideReplyQuotesLatestMessage(t *testing.T) {
	in := Input{Profile: fixedProfile(persona.Shy, 4), Greeted: true, History: history("one", "two", "three")}

	d := Decide(in, scriptedPolicy{SituationOlderReply: true}, prompts)

	require.NotNil(t, d.Target)
	assert.Equal(t, "three", d.Target.Text)
	assert.Equal(t, "reply to: 'three'", d.Prompt)
}

func TestDecideDistractedReplySkipsBack(t *testing.T) {
	in := Input{Profile: fixedProfile(persona.Nerdy, 4), Greeted: true, History: history("one", "two", "three", "four")}

	d := Decide(in, scriptedPolicy{SituationOlderReply: true}, prompts)

	require.NotNil(t, d.Target)
	assert.Equal(t, "one", d.Target.Text)
}

func TestDecideDistractionNeedsEnoughHistory(t *testing.T) {
	in := Input{Profile: fixedProfile(persona.Chatty, 4), Greeted: true, History: history("one", "two")}

	d := Decide(in, scriptedPolicy{SituationOlderReply: true}, prompts)

	assert.Equal(t, "two", d.Target.Text)
}

func TestDecideHints(t *testing.T) {
	in := Input{Profile: fixedProfile(persona.Chatty, 4), Greeted: true, History: history("hi")}

	d := Decide(in, scriptedPolicy{SituationReplyFlavor: true, SituationStyleHint: true}, prompts)

	assert.Equal(t, "reply to: 'hi'"+replyFlavors[0]+" "+styleHints[0], d.Prompt)
}

func TestDecideIsDeterministicForSeed(t *testing.T) {
	in := Input{Profile: fixedProfile(persona.Suspicious, 6), Greeted: true, History: history("a", "b", "c", "d", "e")}

	draw := func() []string {
		p := NewRandomPolicy(DefaultTable(), rand.New(rand.NewPCG(3, 5)))
		var out []string
		for i := 0; i < 50; i++ {
			out = append(out, Decide(in, p, prompts).Prompt)
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestHumanize(t *testing.T) {
	long := "this is a pretty long message about nothing"

	assert.Equal(t, long, humanize(long, persona.Chatty, scriptedPolicy{}))
	assert.Equal(t, reactions[0], humanize(long, persona.Chatty, scriptedPolicy{SituationReaction: true}))

	cut := humanize(long, persona.Chatty, scriptedPolicy{SituationSelfInterrupt: true})
	assert.Equal(t, "this is a... "+interruptions[0], cut)

	short := "too short to cut"
	assert.Equal(t, short, humanize(short, persona.Chatty, scriptedPolicy{SituationSelfInterrupt: true}))
}

func TestPhrasebook(t *testing.T) {
	assert.Contains(t, reactions, "bruh")
	assert.Contains(t, reactions, "idk tbh")
	assert.Contains(t, interruptions, "uh forget it haha")
	assert.Contains(t, corrections, "oops typo 😅")
	assert.Contains(t, styleHints, "Keep it super casual.")
	assert.Contains(t, replyFlavors, " Pretend you were slightly distracted while replying.")
}

func TestTypingDelay(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, typingDelay("hello", 50*time.Millisecond, 3*time.Second))
	assert.Equal(t, 3*time.Second, typingDelay(strings.Repeat("x", 500), 50*time.Millisecond, 3*time.Second))
	assert.Equal(t, 100*time.Millisecond, typingDelay("😂😂", 50*time.Millisecond, 3*time.Second))
}

func TestStaticTablePersonaOverride(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, 0.4, table.Probability(persona.Chatty, SituationOlderReply))
	assert.Equal(t, 0.2, table.Probability(persona.Nerdy, SituationOlderReply))
	assert.Equal(t, 0.0, table.Probability(persona.Shy, SituationOlderReply))
	assert.Equal(t, 0.5, table.Probability(persona.Shy, SituationHesitate))
}

func TestRandomPolicyBetween(t *testing.T) {
	p := NewRandomPolicy(nil, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 100; i++ {
		d := p.Between(time.Second, 2*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	assert.Equal(t, time.Second, p.Between(time.Second, time.Second))
	assert.False(t, p.Roll(persona.Shy, SituationOlderReply))
}
