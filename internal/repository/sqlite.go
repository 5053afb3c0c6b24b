package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ruqii/LLMPuzzle/internal/domain"
)

// ErrGameNotFound is returned when finishing a game that was never created.
var ErrGameNotFound = errors.New("game not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			persona TEXT NOT NULL,
			bot_name TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			winner TEXT,
			humans INTEGER NOT NULL DEFAULT 0,
			messages_sent INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_room ON games(room_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS votes (
			game_id TEXT NOT NULL,
			voter TEXT NOT NULL,
			vote_for TEXT NOT NULL,
			PRIMARY KEY (game_id, voter),
			FOREIGN KEY (game_id) REFERENCES games(game_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGame records the start of a round.
func (s *SQLiteStore) CreateGame(ctx context.Context, game *domain.Game) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (game_id, room_id, persona, bot_name, started_at, humans) VALUES (?, ?, ?, ?, ?, ?)`,
		game.GameID, game.RoomID, game.Persona, game.BotName, game.StartedAt, game.Humans)
	return err
}

// FinishGame stores the outcome and the votes of a round atomically.
func (s *SQLiteStore) FinishGame(ctx context.Context, result *domain.GameResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE games SET ended_at = ?, winner = ?, humans = ?, messages_sent = ? WHERE game_id = ?`,
		result.EndedAt, string(result.Winner), result.Humans, result.MessagesSent, result.GameID)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGameNotFound
	}

	for _, v := range result.Votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO votes (game_id, voter, vote_for) VALUES (?, ?, ?)`,
			result.GameID, v.Voter, v.VoteFor); err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}
	}
	return tx.Commit()
}

// GetGame retrieves a game by ID.
func (s *SQLiteStore) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	var game domain.Game
	var endedAt sql.NullTime
	var winner sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id, room_id, persona, bot_name, started_at, ended_at, winner, humans, messages_sent
		 FROM games WHERE game_id = ?`,
		gameID).Scan(&game.GameID, &game.RoomID, &game.Persona, &game.BotName, &game.StartedAt,
		&endedAt, &winner, &game.Humans, &game.MessagesSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		game.EndedAt = &endedAt.Time
	}
	if winner.Valid {
		game.Winner = domain.Winner(winner.String)
	}
	return &game, nil
}

// GetVotes lists the votes of a game.
func (s *SQLiteStore) GetVotes(ctx context.Context, gameID string) ([]domain.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT voter, vote_for FROM votes WHERE game_id = ? ORDER BY voter`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.Voter, &v.VoteFor); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// GetStats aggregates every finished game.
func (s *SQLiteStore) GetStats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{AIWinsBy: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx,
		`SELECT persona, winner, COUNT(*) FROM games WHERE winner IS NOT NULL GROUP BY persona, winner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var personaName, winner string
		var count int
		if err := rows.Scan(&personaName, &winner, &count); err != nil {
			return nil, err
		}
		stats.Games += count
		switch domain.Winner(winner) {
		case domain.WinnerHumans:
			stats.HumansWon += count
		case domain.WinnerAI:
			stats.AIWon += count
			stats.AIWinsBy[personaName] += count
		}
	}
	return stats, rows.Err()
}
