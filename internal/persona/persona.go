// Package persona holds the behavioral profiles a simulated participant can
// assume and the prompt templates that give each profile its voice.
package persona

import (
	"fmt"
	"time"
)

// Persona names.
const (
	Shy        = "shy"
	Chatty     = "chatty"
	Sarcastic  = "sarcastic"
	Nerdy      = "nerdy"
	Mysterious = "mysterious"
	Optimistic = "optimistic"
	Suspicious = "suspicious"
)

// Names lists every persona in catalog order.
var Names = []string{Shy, Chatty, Sarcastic, Nerdy, Mysterious, Optimistic, Suspicious}

// Range is an inclusive integer range.
type Range struct {
	Min int
	Max int
}

// DelayRange bounds the pause before each considered message.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Spec is a catalog entry before the message budget is drawn.
type Spec struct {
	Name             string
	MaxMessages      Range
	SilenceThreshold time.Duration
	Delay            DelayRange
	// DistractionSkip is how many of the newest messages a distracted reply
	// skips over. Zero means the persona always answers the latest message.
	DistractionSkip int
	Tone            string
}

// Profile is a selected persona. It is immutable once built.
type Profile struct {
	Name             string
	MaxMessages      int
	SilenceThreshold time.Duration
	Delay            DelayRange
	DistractionSkip  int
	Tone             string
}

const baseInstructions = "You are chatting casually in a group with humans. " +
	"Blend in naturally. Use casual, sometimes slangy, informal text. " +
	"Respond briefly. Avoid walls of text. Sometimes stay quiet if others are chatting."

const universalRules = " Keep responses short and casual, like real group chats. " +
	"Avoid sounding too enthusiastic or formal. " +
	"If telling a story, pause after one sentence. " +
	"It's okay to respond to older messages."

var catalog = map[string]Spec{
	Shy: {
		Name: Shy, MaxMessages: Range{3, 5}, SilenceThreshold: 60 * time.Second,
		Delay: DelayRange{10 * time.Second, 20 * time.Second}, Tone: "You are shy and reserved.",
	},
	Chatty: {
		Name: Chatty, MaxMessages: Range{8, 12}, SilenceThreshold: 20 * time.Second,
		Delay: DelayRange{5 * time.Second, 10 * time.Second}, DistractionSkip: 1,
		Tone: "You are energetic and very talkative.",
	},
	Sarcastic: {
		Name: Sarcastic, MaxMessages: Range{5, 8}, SilenceThreshold: 40 * time.Second,
		Delay: DelayRange{8 * time.Second, 15 * time.Second}, DistractionSkip: 1,
		Tone: "You are playful and sarcastic.",
	},
	Nerdy: {
		Name: Nerdy, MaxMessages: Range{6, 10}, SilenceThreshold: 30 * time.Second,
		Delay: DelayRange{7 * time.Second, 12 * time.Second}, DistractionSkip: 2,
		Tone: "You love tech, games, and geek jokes.",
	},
	Mysterious: {
		Name: Mysterious, MaxMessages: Range{4, 6}, SilenceThreshold: 50 * time.Second,
		Delay: DelayRange{12 * time.Second, 20 * time.Second}, Tone: "You are vague and cryptic.",
	},
	Optimistic: {
		Name: Optimistic, MaxMessages: Range{7, 11}, SilenceThreshold: 25 * time.Second,
		Delay: DelayRange{6 * time.Second, 12 * time.Second}, DistractionSkip: 2,
		Tone: "You are cheerful and positive.",
	},
	Suspicious: {
		Name: Suspicious, MaxMessages: Range{5, 8}, SilenceThreshold: 40 * time.Second,
		Delay: DelayRange{8 * time.Second, 15 * time.Second}, DistractionSkip: 1,
		Tone: "You like joking about who might be an AI.",
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Spec, bool) {
	s, ok := catalog[name]
	return s, ok
}

// Intn is the randomness Select needs; *rand.Rand from math/rand/v2 satisfies it.
type Intn interface {
	IntN(n int) int
}

// Select picks a persona uniformly and draws its message budget.
func Select(rng Intn) Profile {
	return Resolve(Names[rng.IntN(len(Names))], rng)
}

// Resolve builds a profile for name, falling back to chatty for unknown names.
func Resolve(name string, rng Intn) Profile {
	spec, ok := catalog[name]
	if !ok {
		spec = catalog[Chatty]
	}
	return spec.Resolve(rng)
}

// Resolve draws the message budget within the spec's range.
func (s Spec) Resolve(rng Intn) Profile {
	budget := s.MaxMessages.Min
	if span := s.MaxMessages.Max - s.MaxMessages.Min; span > 0 {
		budget += rng.IntN(span + 1)
	}
	return Profile{
		Name:             s.Name,
		MaxMessages:      budget,
		SilenceThreshold: s.SilenceThreshold,
		Delay:            s.Delay,
		DistractionSkip:  s.DistractionSkip,
		Tone:             s.Tone,
	}
}

// Instructions is the persona text sent to the response generator.
func (p Profile) Instructions() string {
	if p.Tone == "" {
		return baseInstructions + universalRules
	}
	return fmt.Sprintf("%s %s%s", baseInstructions, p.Tone, universalRules)
}
