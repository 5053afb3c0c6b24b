package scheduler

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Situation names a probabilistic choice the scheduler makes.
type Situation string

const (
	// SituationHesitate skips a whole tick.
	SituationHesitate Situation = "hesitate"
	// SituationAvoidDoubleTurn skips a tick when the bot spoke last.
	SituationAvoidDoubleTurn Situation = "avoid_double_turn"
	// SituationOlderReply answers an older message instead of the latest.
	SituationOlderReply Situation = "older_reply"
	// SituationReplyFlavor adds one style hint to a reply prompt.
	SituationReplyFlavor Situation = "reply_flavor"
	// SituationStyleHint appends a casual-style variation to any prompt.
	SituationStyleHint Situation = "style_hint"
	// SituationReaction replaces the generated text with a short reaction.
	SituationReaction Situation = "reaction"
	// SituationSelfInterrupt truncates the message and trails off.
	SituationSelfInterrupt Situation = "self_interrupt"
	// SituationCorrection follows a message with a short retraction.
	SituationCorrection Situation = "correction"
)

// Table yields the probability of a situation for a persona.
type Table interface {
	Probability(persona string, situation Situation) float64
}

// StaticTable is an in-memory probability table. Persona entries override
// the base entry for the same situation.
type StaticTable struct {
	Base    map[Situation]float64
	Persona map[string]map[Situation]float64
}

// Probability implements Table.
func (t StaticTable) Probability(persona string, situation Situation) float64 {
	if byPersona, ok := t.Persona[persona]; ok {
		if p, ok := byPersona[situation]; ok {
			return p
		}
	}
	return t.Base[situation]
}

// DefaultTable is the canonical probability set.
func DefaultTable() StaticTable {
	distracted := func(p float64) map[Situation]float64 {
		return map[Situation]float64{SituationOlderReply: p}
	}
	return StaticTable{
		Base: map[Situation]float64{
			SituationHesitate:        0.5,
			SituationAvoidDoubleTurn: 0.7,
			SituationOlderReply:      0,
			SituationReplyFlavor:     0.2,
			SituationStyleHint:       0.5,
			SituationReaction:        0.1,
			SituationSelfInterrupt:   0.12,
			SituationCorrection:      0.15,
		},
		Persona: map[string]map[Situation]float64{
			"chatty":     distracted(0.4),
			"sarcastic":  distracted(0.4),
			"suspicious": distracted(0.4),
			"nerdy":      distracted(0.2),
			"optimistic": distracted(0.2),
		},
	}
}

// Policy makes every random choice of the scheduler. Tests substitute
// deterministic implementations.
type Policy interface {
	// Roll reports whether the situation happens this time.
	Roll(persona string, situation Situation) bool
	// Intn returns a value in [0, n).
	Intn(n int) int
	// Between returns a duration in [lo, hi].
	Between(lo, hi time.Duration) time.Duration
}

// RandomPolicy draws from a seeded source against a probability table.
// It is safe for concurrent use.
type RandomPolicy struct {
	mu    sync.Mutex
	table Table
	rng   *rand.Rand
}

// NewRandomPolicy returns a policy over table. A nil rng seeds from the runtime.
func NewRandomPolicy(table Table, rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if table == nil {
		table = DefaultTable()
	}
	return &RandomPolicy{table: table, rng: rng}
}

// Roll implements Policy.
func (p *RandomPolicy) Roll(persona string, situation Situation) bool {
	prob := p.table.Probability(persona, situation)
	if prob <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob
}

// Intn implements Policy.
func (p *RandomPolicy) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// Between implements Policy.
func (p *RandomPolicy) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rng.Int64N(int64(hi-lo)+1))
}
