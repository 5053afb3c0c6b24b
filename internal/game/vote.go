package game

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/protocol"
)

// Handle dispatches one inbound frame from a human.
func (s *Session) Handle(ctx context.Context, p domain.Participant, data []byte) {
	msg, err := protocol.ParseInbound(data)
	if err != nil {
		s.reply(ctx, p, protocol.NewError(protocol.ErrorCodeInvalidMessage, err.Error()))
		return
	}

	switch m := msg.(type) {
	case *protocol.ChatMessage:
		s.Message(ctx, p, m.Text)
	case *protocol.VoteMessage:
		switch err := s.Vote(ctx, p, m.VoteFor); {
		case err == nil:
		case errors.Is(err, ErrRoundOver):
			s.reply(ctx, p, protocol.NewError(protocol.ErrorCodeRoundOver, err.Error()))
		default:
			s.reply(ctx, p, protocol.NewError(protocol.ErrorCodeInvalidVote, err.Error()))
		}
	}
}

func (s *Session) reply(ctx context.Context, p domain.Participant, v any) {
	if err := s.reg.SendTo(ctx, p.ID, v); err != nil {
		s.logger.Debug("Failed to reply", zap.String("participant_id", p.ID), zap.Error(err))
	}
}

// Vote records voter's guess. The round resolves once every human present
// has voted.
func (s *Session) Vote(ctx context.Context, voter domain.Participant, voteFor string) error {
	s.mu.Lock()
	switch {
	case s.result != nil || s.bot == nil:
		s.mu.Unlock()
		return ErrRoundOver
	case voteFor == voter.DisplayName || !s.names[voteFor]:
		s.mu.Unlock()
		return ErrInvalidVote
	}
	if _, ok := s.votes[voter.ID]; ok {
		s.mu.Unlock()
		return ErrAlreadyVoted
	}
	s.votes[voter.ID] = domain.Vote{Voter: voter.DisplayName, VoteFor: voteFor}
	s.mu.Unlock()

	s.logger.Info("Vote cast", zap.String("voter", voter.DisplayName), zap.String("vote_for", voteFor))
	s.maybeResolve(ctx)
	return nil
}

// maybeResolve announces and records the result when every present human
// has voted.
func (s *Session) maybeResolve(ctx context.Context) {
	humans := s.reg.Humans()

	s.mu.Lock()
	if s.result != nil || s.bot == nil || len(s.votes) == 0 {
		s.mu.Unlock()
		return
	}
	for _, h := range humans {
		if _, ok := s.votes[h.ID]; !ok {
			s.mu.Unlock()
			return
		}
	}

	votes := make([]domain.Vote, 0, len(s.votes))
	caught := 0
	for _, v := range s.votes {
		votes = append(votes, v)
		if v.VoteFor == s.bot.participant.DisplayName {
			caught++
		}
	}
	winner := domain.WinnerAI
	if caught*2 > len(votes) {
		winner = domain.WinnerHumans
	}
	result := &domain.GameResult{
		GameID:       s.bot.gameID,
		Winner:       winner,
		BotName:      s.bot.participant.DisplayName,
		Votes:        votes,
		Humans:       len(humans),
		MessagesSent: s.bot.sent,
		EndedAt:      s.deps.Clock.Now(),
	}
	s.result = result
	s.mu.Unlock()

	if _, err := s.reg.BroadcastJSON(ctx, protocol.NewVotingResult(string(result.Winner), result.BotName)); err != nil {
		s.logger.Warn("Failed to announce result", zap.Error(err))
	}
	if err := s.deps.Recorder.Record(ctx, result); err != nil {
		s.logger.Warn("Failed to record result", zap.String("game_id", result.GameID), zap.Error(err))
	}
	s.logger.Info("Round resolved", zap.String("winner", string(winner)), zap.Int("votes", len(votes)))
}

// Result returns the announced result, if any.
func (s *Session) Result() *domain.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
