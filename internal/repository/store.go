// Package repository persists finished rounds and their votes.
package repository

import (
	"context"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

// Store is the persistence port used by the scoreboard.
type Store interface {
	CreateGame(ctx context.Context, game *domain.Game) error
	FinishGame(ctx context.Context, result *domain.GameResult) error
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	GetVotes(ctx context.Context, gameID string) ([]domain.Vote, error)
	GetStats(ctx context.Context) (*domain.Stats, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
