package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruqii/LLMPuzzle/internal/cache"
	"github.com/Ruqii/LLMPuzzle/internal/domain"
	"github.com/Ruqii/LLMPuzzle/internal/testutil"
)

func TestScoreboardCachesStatsUntilRecord(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestSQLiteStore(t)
	memCache := cache.NewMemoryCache(nil)
	board := NewScoreboard(store, memCache, time.Minute, nil)

	require.NoError(t, board.StartGame(ctx, &domain.Game{GameID: "g1", RoomID: "lobby", Persona: "shy", BotName: "Participant 2", StartedAt: time.Now()}))
	require.NoError(t, board.StartGame(ctx, &domain.Game{GameID: "g2", RoomID: "lobby", Persona: "shy", BotName: "Participant 4", StartedAt: time.Now()}))
	require.NoError(t, board.Record(ctx, &domain.GameResult{GameID: "g1", Winner: domain.WinnerAI, EndedAt: time.Now()}))

	stats, err := board.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AIWon)

	cached, err := memCache.Get(ctx, statsKey)
	require.NoError(t, err)
	assert.Contains(t, cached, `"ai_won":1`)

	require.NoError(t, board.Record(ctx, &domain.GameResult{GameID: "g2", Winner: domain.WinnerHumans, EndedAt: time.Now()}))
	_, err = memCache.Get(ctx, statsKey)
	assert.ErrorIs(t, err, cache.ErrMiss)

	stats, err = board.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Games)
	assert.Equal(t, 1, stats.HumansWon)
	assert.Equal(t, 1, stats.AIWinsBy["shy"])
}

func TestScoreboardServesFromCache(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache(nil)
	require.NoError(t, memCache.Set(ctx, statsKey, `{"games":7,"humans_won":3,"ai_won":4}`, 0))

	board := NewScoreboard(testutil.NewTestSQLiteStore(t), memCache, time.Minute, nil)
	stats, err := board.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 7, stats.Games)
}

func TestScoreboardRecordUnknownGame(t *testing.T) {
	board := NewScoreboard(testutil.NewTestSQLiteStore(t), cache.NewMemoryCache(nil), time.Minute, nil)
	err := board.Record(context.Background(), &domain.GameResult{GameID: "nope", Winner: domain.WinnerAI})
	assert.Error(t, err)
}
