package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comprl/comprl/internal/models"
)

// GameStore writes finished games and serves the read-only statistics
// queries used by the dashboard API.
type GameStore struct {
	db *sqlx.DB
}

func NewGameStore(db *sqlx.DB) *GameStore {
	return &GameStore{db: db}
}

// Add inserts the write-once result row for a finished game.
func (s *GameStore) Add(res *models.GameResult) error {
	_, err := s.db.NamedExec(`INSERT INTO games
		(game_id, user1, user2, score1, score2, start_time, end_state, winner, disconnected)
		VALUES (:game_id, :user1, :user2, :score1, :score2, :start_time, :end_state, :winner, :disconnected)`,
		res)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", res.GameID, err)
	}
	return nil
}

// GameRow is one finished game with usernames resolved, for the API.
type GameRow struct {
	GameID    models.GameID       `db:"game_id" json:"game_id"`
	User1     string              `db:"user1_name" json:"user1"`
	User2     string              `db:"user2_name" json:"user2"`
	Score1    float64             `db:"score1" json:"score1"`
	Score2    float64             `db:"score2" json:"score2"`
	StartTime time.Time           `db:"start_time" json:"start_time"`
	EndState  models.GameEndState `db:"end_state" json:"end_state"`
	Winner    *string             `db:"winner_name" json:"winner,omitempty"`
}

// Recent returns the latest finished games, newest first.
func (s *GameStore) Recent(limit int) ([]GameRow, error) {
	var rows []GameRow
	err := s.db.Select(&rows, `
		SELECT g.game_id, u1.username AS user1_name, u2.username AS user2_name,
		       g.score1, g.score2, g.start_time, g.end_state,
		       w.username AS winner_name
		FROM games g
		JOIN users u1 ON u1.user_id = g.user1
		JOIN users u2 ON u2.user_id = g.user2
		LEFT JOIN users w ON w.user_id = g.winner
		ORDER BY g.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	return rows, nil
}

// PairStats aggregates one user's record against a single opponent.
type PairStats struct {
	Opponent string `db:"opponent" json:"opponent"`
	Wins     int    `db:"wins" json:"wins"`
	Draws    int    `db:"draws" json:"draws"`
	Losses   int    `db:"losses" json:"losses"`
}

// PairStatistics returns the user's win/draw/loss record per opponent.
// Disconnected games count in none of the columns.
func (s *GameStore) PairStatistics(userID int64) ([]PairStats, error) {
	var stats []PairStats
	err := s.db.Select(&stats, `
		SELECT u.username AS opponent,
		       SUM(CASE WHEN g.winner = ? THEN 1 ELSE 0 END) AS wins,
		       SUM(CASE WHEN g.end_state = 1 THEN 1 ELSE 0 END) AS draws,
		       SUM(CASE WHEN g.winner IS NOT NULL AND g.winner != ? THEN 1 ELSE 0 END) AS losses
		FROM games g
		JOIN users u ON u.user_id = CASE WHEN g.user1 = ? THEN g.user2 ELSE g.user1 END
		WHERE g.user1 = ? OR g.user2 = ?
		GROUP BY u.username
		ORDER BY u.username`,
		userID, userID, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("pair statistics for %d: %w", userID, err)
	}
	return stats, nil
}

// UserStatistics returns the user's overall win/draw/loss totals.
func (s *GameStore) UserStatistics(userID int64) (wins, draws, losses int, err error) {
	var row struct {
		Wins   int `db:"wins"`
		Draws  int `db:"draws"`
		Losses int `db:"losses"`
	}
	err = s.db.Get(&row, `
		SELECT COALESCE(SUM(CASE WHEN g.winner = ? THEN 1 ELSE 0 END), 0) AS wins,
		       COALESCE(SUM(CASE WHEN g.end_state = 1 THEN 1 ELSE 0 END), 0) AS draws,
		       COALESCE(SUM(CASE WHEN g.winner IS NOT NULL AND g.winner != ? THEN 1 ELSE 0 END), 0) AS losses
		FROM games g
		WHERE g.user1 = ? OR g.user2 = ?`,
		userID, userID, userID, userID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("statistics for %d: %w", userID, err)
	}
	return row.Wins, row.Draws, row.Losses, nil
}
