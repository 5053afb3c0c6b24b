package domain

import "time"

// Participant is one chat occupant. Values are snapshots; the registry owns
// the live record and its channel.
type Participant struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Kind        ParticipantKind `json:"kind"`
	JoinedAt    time.Time       `json:"joined_at"`
}

// IsHuman reports whether the participant is backed by a client connection.
func (p Participant) IsHuman() bool {
	return p.Kind == ParticipantKindHuman
}

// ChatEvent is a line of text attributed to a participant.
type ChatEvent struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Text          string    `json:"text"`
	At            time.Time `json:"at"`
}

// Exchange is one prompt/response pair sent through the response generator.
type Exchange struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Game is one round with a simulated participant.
type Game struct {
	GameID       string     `json:"game_id"`
	RoomID       string     `json:"room_id"`
	Persona      string     `json:"persona"`
	BotName      string     `json:"bot_name"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Winner       Winner     `json:"winner,omitempty"`
	Humans       int        `json:"humans"`
	MessagesSent int        `json:"messages_sent"`
}

// Vote is a single human's guess of which participant is the bot.
type Vote struct {
	Voter   string `json:"voter"`
	VoteFor string `json:"vote_for"`
}

// GameResult closes a round.
type GameResult struct {
	GameID       string    `json:"game_id"`
	Winner       Winner    `json:"winner"`
	BotName      string    `json:"bot_name"`
	Votes        []Vote    `json:"votes"`
	Humans       int       `json:"humans"`
	MessagesSent int       `json:"messages_sent"`
	EndedAt      time.Time `json:"ended_at"`
}

// Stats aggregates finished rounds.
type Stats struct {
	Games     int            `json:"games"`
	HumansWon int            `json:"humans_won"`
	AIWon     int            `json:"ai_won"`
	AIWinsBy  map[string]int `json:"ai_wins_by_persona"`
}
