package scheduler

import (
	"strings"
	"time"
	"unicode/utf8"
)

var reactions = []string{"lol", "same", "mood", "fr", "yikes", "true", "bruh", "lmao", "idk tbh"}

var interruptions = []string{
	"never mind lol",
	"actually scratch that",
	"wait, not sure",
	"uh forget it haha",
	"maybe not",
}

var corrections = []string{
	"wait no, I meant...",
	"oops typo 😅",
	"actually scratch that",
	"uhh, ignore that lol",
	"lol wrong word",
}

var fallbacks = []string{"uhh", "not sure lol", "what do you think?", "hmmm 🤔"}

// humanize applies the reaction and self-interruption transforms.
func humanize(text, personaName string, policy Policy) string {
	if policy.Roll(personaName, SituationReaction) {
		text = reactions[policy.Intn(len(reactions))]
	}
	if policy.Roll(personaName, SituationSelfInterrupt) {
		words := strings.Fields(text)
		if len(words) > 5 {
			keep := 3 + policy.Intn(3)
			text = strings.Join(words[:keep], " ") + "... " + interruptions[policy.Intn(len(interruptions))]
		}
	}
	return text
}

// typingDelay simulates typing time, proportional to length and capped.
func typingDelay(text string, perChar, limit time.Duration) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * perChar
	return min(d, limit)
}
