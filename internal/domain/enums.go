// Package domain defines the core domain models for the bot-or-not game.
package domain

// ParticipantKind distinguishes human occupants from the simulated one.
type ParticipantKind string

const (
	ParticipantKindHuman     ParticipantKind = "human"
	ParticipantKindSimulated ParticipantKind = "simulated"
)

// Winner is the outcome of a voting round.
type Winner string

const (
	WinnerHumans Winner = "Humans"
	WinnerAI     Winner = "AI"
)

// Role values used in generator exchanges.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
