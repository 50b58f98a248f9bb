package models

import (
	"time"
)

// UserRole controls matchmaking eligibility: two bots are never paired.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleBot   UserRole = "bot"
	RoleAdmin UserRole = "admin"
)

// User is a persistent account row. Password holds the bcrypt hash; Token is
// the opaque credential agents authenticate with.
type User struct {
	ID       int64    `db:"user_id" json:"user_id"`
	Username string   `db:"username" json:"username"`
	Password []byte   `db:"password" json:"-"`
	Token    string   `db:"token" json:"-"`
	Role     UserRole `db:"role" json:"role"`
	Mu       float64  `db:"mu" json:"mu"`
	Sigma    float64  `db:"sigma" json:"sigma"`
}

// Score is the ranking key used by the leaderboard.
func (u *User) Score() float64 {
	return u.Mu - 3*u.Sigma
}

// GameEndState encodes how a game concluded. The integer values are part of
// the database schema.
type GameEndState int

const (
	EndStateWin          GameEndState = 0
	EndStateDraw         GameEndState = 1
	EndStateDisconnected GameEndState = 2
)

func (s GameEndState) String() string {
	switch s {
	case EndStateWin:
		return "WIN"
	case EndStateDraw:
		return "DRAW"
	case EndStateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// GameResult is the write-once record of a finished game.
type GameResult struct {
	GameID         GameID       `db:"game_id" json:"game_id"`
	User1ID        int64        `db:"user1" json:"user1_id"`
	User2ID        int64        `db:"user2" json:"user2_id"`
	Score1         float64      `db:"score1" json:"score1"`
	Score2         float64      `db:"score2" json:"score2"`
	StartTime      time.Time    `db:"start_time" json:"start_time"`
	EndState       GameEndState `db:"end_state" json:"end_state"`
	WinnerID       *int64       `db:"winner" json:"winner_id,omitempty"`
	DisconnectedID *int64       `db:"disconnected" json:"disconnected_id,omitempty"`
}
