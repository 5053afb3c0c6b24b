package scheduler

import (
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/ringbuf"
)

// ExchangeWindow is how many prompt/response pairs the scheduler remembers.
const ExchangeWindow = 3

// State is the mutable progress of one simulated participant. It is owned by
// its scheduler loop and never shared.
type State struct {
	Sent           int
	Greeted        bool
	LastWasStarter bool
	exchanges      *ringbuf.Buffer[domain.Exchange]
}

// NewState returns a fresh state with an empty exchange window.
func NewState() *State {
	return &State{exchanges: ringbuf.New[domain.Exchange](ExchangeWindow)}
}

// Exchanges returns the remembered exchanges, oldest first.
func (s *State) Exchanges() []domain.Exchange {
	return s.exchanges.Items()
}

func (s *State) remember(prompt, response string) {
	s.exchanges.Push(domain.Exchange{Prompt: prompt, Response: response})
}

// apply records the flag transitions of a chosen action.
func (s *State) apply(kind DecisionKind) {
	switch kind {
	case DecisionGreeting:
		s.Greeted = true
		s.LastWasStarter = true
	case DecisionSilenceBreak, DecisionReply:
		s.LastWasStarter = false
	case DecisionStarter:
		s.LastWasStarter = true
	}
}
