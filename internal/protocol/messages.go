// Package protocol defines the WebSocket message protocol between players and the server.
package protocol

// Message types from client to server
const (
	TypeChat = "chat"
	TypeVote = "vote"
)

// Message types from server to client
const (
	TypeAssignID      = "assign_id"
	TypeUpdatePlayers = "update_players"
	TypeVotingStart   = "voting_start"
	TypeVotingResult  = "voting_result"
	TypeError         = "error"
)

// BaseMessage contains the type discriminator shared by every JSON frame.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

// ChatMessage is sent by a client to say something. Plain text frames are
// accepted as chat too.
type ChatMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// VoteMessage is sent by a client to guess the simulated participant.
type VoteMessage struct {
	BaseMessage
	VoteFor string `json:"vote_for"`
}

// AssignIDMessage tells a client its display name.
type AssignIDMessage struct {
	BaseMessage
	ChatID string `json:"chat_id"`
}

// UpdatePlayersMessage carries the current roster.
type UpdatePlayersMessage struct {
	BaseMessage
	Players []string `json:"players"`
}

// VotingStartMessage opens the chat phase; clients vote once it ends.
type VotingStartMessage struct {
	BaseMessage
	Players []string `json:"players"`
	Seconds int      `json:"seconds"`
}

// VotingResultMessage announces the round outcome.
type VotingResultMessage struct {
	BaseMessage
	Winner     string `json:"winner"`
	AINickname string `json:"ai_nickname"`
}

// ErrorMessage is sent when a client frame cannot be handled.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidVote    = "invalid_vote"
	ErrorCodeRoundOver      = "round_over"
	ErrorCodeInternalError  = "internal_error"
)
