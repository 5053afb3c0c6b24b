package scheduler

import (
	"fmt"
	"time"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/persona"
)

// DecisionKind is the action chosen on a tick.
type DecisionKind string

const (
	DecisionGreeting     DecisionKind = "greeting"
	DecisionSilenceBreak DecisionKind = "silence_break"
	DecisionReply        DecisionKind = "reply"
	DecisionStarter      DecisionKind = "starter"
	DecisionSkip         DecisionKind = "skip"
)

// Decision is what the scheduler intends to say. Target is set for replies.
type Decision struct {
	Kind   DecisionKind
	Prompt string
	Target *domain.ChatEvent
}

// Prompts looks up persona templates. *persona.Templates satisfies it.
type Prompts interface {
	Prompt(kind persona.Kind, personaName string) string
}

// Input is everything Decide reads.
type Input struct {
	Profile        persona.Profile
	Greeted        bool
	LastWasStarter bool
	Humans         int
	Silence        time.Duration
	SilenceMargin  time.Duration
	History        []domain.ChatEvent
}

var replyFlavors = []string{
	" Add a quick emoji at the end if it fits.",
	" Keep it extremely short, like 1 short sentence.",
	" Pretend you were slightly distracted while replying.",
}

var styleHints = []string{
	"Keep it super casual.",
	"Sound natural like a lazy group chat.",
	"Maybe toss in a typo or emoji.",
	"Use short sentences if possible.",
	"Don't sound too polished.",
}

// Decide picks the next action. It has no side effects; identical inputs and
// policy draws give identical decisions.
func Decide(in Input, policy Policy, prompts Prompts) Decision {
	name := in.Profile.Name

	var d Decision
	switch {
	case !in.Greeted:
		d = Decision{Kind: DecisionGreeting, Prompt: prompts.Prompt(persona.KindGreeting, name)}
		if in.Humans < 2 {
			d.Prompt = persona.OneOnOneGreeting
		}
	case in.Silence >= in.Profile.SilenceThreshold+in.SilenceMargin:
		d = Decision{Kind: DecisionSilenceBreak, Prompt: prompts.Prompt(persona.KindSilence, name)}
	case len(in.History) > 0:
		target := pickTarget(in.History, in.Profile, policy)
		d = Decision{
			Kind:   DecisionReply,
			Prompt: fmt.Sprintf("%s: '%s'", prompts.Prompt(persona.KindReply, name), target.Text),
			Target: &target,
		}
		for _, flavor := range replyFlavors {
			if policy.Roll(name, SituationReplyFlavor) {
				d.Prompt += flavor
				break
			}
		}
	case !in.LastWasStarter:
		d = Decision{Kind: DecisionStarter, Prompt: prompts.Prompt(persona.KindStarter, name)}
	default:
		return Decision{Kind: DecisionSkip}
	}

	if policy.Roll(name, SituationStyleHint) {
		d.Prompt += " " + styleHints[policy.Intn(len(styleHints))]
	}
	return d
}

// pickTarget returns the newest message, or for distractible personas
// sometimes an older one further back in the window.
func pickTarget(history []domain.ChatEvent, profile persona.Profile, policy Policy) domain.ChatEvent {
	n := len(history)
	skip := profile.DistractionSkip
	if skip > 0 && n > skip && n > 2 && policy.Roll(profile.Name, SituationOlderReply) {
		older := history[:n-skip]
		return older[policy.Intn(len(older))]
	}
	return history[n-1]
}
