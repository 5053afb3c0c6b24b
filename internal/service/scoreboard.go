// Package service holds application services that sit between the game
// sessions and persistence.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ruqii/LLMPuzzle/internal/cache"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/repository"
)

const statsKey = "botornot:stats"

// Scoreboard records finished rounds and serves aggregate stats.
type Scoreboard struct {
	store  repository.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewScoreboard wires a scoreboard. Stats are cached for ttl.
func NewScoreboard(store repository.Store, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Scoreboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scoreboard{
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "scoreboard")),
	}
}

// StartGame persists the opening of a round.
func (s *Scoreboard) StartGame(ctx context.Context, game *domain.Game) error {
	if err := s.store.CreateGame(ctx, game); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// Record persists a result and invalidates cached stats.
func (s *Scoreboard) Record(ctx context.Context, result *domain.GameResult) error {
	if err := s.store.FinishGame(ctx, result); err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}
	if _, err := s.cache.Del(ctx, statsKey); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
	s.logger.Info("Game recorded",
		zap.String("game_id", result.GameID),
		zap.String("winner", string(result.Winner)),
		zap.Int("votes", len(result.Votes)))
	return nil
}

// Stats returns the aggregate scoreboard, reading through the cache.
func (s *Scoreboard) Stats(ctx context.Context) (*domain.Stats, error) {
	raw, err := s.cache.Get(ctx, statsKey)
	if err == nil {
		var stats domain.Stats
		if err := json.Unmarshal([]byte(raw), &stats); err == nil {
			return &stats, nil
		}
		s.logger.Warn("Discarding malformed cached stats")
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Stats cache unavailable", zap.Error(err))
	}

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	if data, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, statsKey, string(data), s.ttl); err != nil {
			s.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}
	return stats, nil
}
