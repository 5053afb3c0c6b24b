package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ParseInbound decodes a client frame. JSON objects are dispatched on their
// type; anything else is treated as a plain chat line.
func ParseInbound(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &ChatMessage{BaseMessage: BaseMessage{Type: TypeChat}, Text: string(data)}, nil
	}

	var base BaseMessage
	if err := json.Unmarshal(trimmed, &base); err != nil {
		// Looks like JSON but is not; players can type braces too.
		return &ChatMessage{BaseMessage: BaseMessage{Type: TypeChat}, Text: string(data)}, nil
	}

	switch base.Type {
	case TypeChat:
		var msg ChatMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return nil, fmt.Errorf("invalid chat message: %w", err)
		}
		return &msg, nil
	case TypeVote:
		var msg VoteMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return nil, fmt.Errorf("invalid vote message: %w", err)
		}
		return &msg, nil
	case "":
		return &ChatMessage{BaseMessage: BaseMessage{Type: TypeChat}, Text: string(data)}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

// NewAssignID builds an assign_id frame.
func NewAssignID(name string) AssignIDMessage {
	return AssignIDMessage{BaseMessage: newBase(TypeAssignID), ChatID: name}
}

// NewUpdatePlayers builds an update_players frame.
func NewUpdatePlayers(players []string) UpdatePlayersMessage {
	if players == nil {
		players = []string{}
	}
	return UpdatePlayersMessage{BaseMessage: newBase(TypeUpdatePlayers), Players: players}
}

// NewVotingStart builds a voting_start frame.
func NewVotingStart(players []string, seconds int) VotingStartMessage {
	if players == nil {
		players = []string{}
	}
	return VotingStartMessage{BaseMessage: newBase(TypeVotingStart), Players: players, Seconds: seconds}
}

// NewVotingResult builds a voting_result frame.
func NewVotingResult(winner, aiNickname string) VotingResultMessage {
	return VotingResultMessage{BaseMessage: newBase(TypeVotingResult), Winner: winner, AINickname: aiNickname}
}

// NewError builds an error frame.
func NewError(code, message string) ErrorMessage {
	return ErrorMessage{BaseMessage: newBase(TypeError), Code: code, Message: message}
}

func newBase(typ string) BaseMessage {
	return BaseMessage{Type: typ, Ts: time.Now().UnixMilli()}
}
