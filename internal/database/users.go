package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/comprl/comprl/internal/models"
	"github.com/comprl/comprl/internal/rating"
)

const userColumns = "user_id, username, password, token, role, mu, sigma"

// UserStore reads and writes the users table.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// Add inserts a user with schema-default ratings and returns its id.
func (s *UserStore) Add(username string, passwordHash []byte, token string, role models.UserRole) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (username, password, token, role) VALUES (?, ?, ?, ?)`,
		username, passwordHash, token, role,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", username, err)
	}
	return id, nil
}

// ByToken resolves the authentication credential to a user. Unknown tokens
// surface as a wrapped sql.ErrNoRows.
func (s *UserStore) ByToken(token string) (*models.User, error) {
	var u models.User
	if err := s.db.Get(&u, `SELECT `+userColumns+` FROM users WHERE token = ?`, token); err != nil {
		return nil, fmt.Errorf("user by token: %w", err)
	}
	return &u, nil
}

func (s *UserStore) ByID(id int64) (*models.User, error) {
	var u models.User
	if err := s.db.Get(&u, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id); err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return &u, nil
}

func (s *UserStore) ByName(username string) (*models.User, error) {
	var u models.User
	if err := s.db.Get(&u, `SELECT `+userColumns+` FROM users WHERE username = ?`, username); err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	return &u, nil
}

// MatchmakingParameters returns the stored mu and sigma for a user.
func (s *UserStore) MatchmakingParameters(userID int64) (float64, float64, error) {
	var row struct {
		Mu    float64 `db:"mu"`
		Sigma float64 `db:"sigma"`
	}
	if err := s.db.Get(&row, `SELECT mu, sigma FROM users WHERE user_id = ?`, userID); err != nil {
		return 0, 0, fmt.Errorf("matchmaking parameters for %d: %w", userID, err)
	}
	return row.Mu, row.Sigma, nil
}

// SetMatchmakingParameters writes a rating update back to the user row.
func (s *UserStore) SetMatchmakingParameters(userID int64, mu, sigma float64) error {
	if _, err := s.db.Exec(`UPDATE users SET mu = ?, sigma = ? WHERE user_id = ?`, mu, sigma, userID); err != nil {
		return fmt.Errorf("set matchmaking parameters for %d: %w", userID, err)
	}
	return nil
}

// AddSigmaAll applies one score-decay step to every user.
func (s *UserStore) AddSigmaAll(delta float64) error {
	if _, err := s.db.Exec(`UPDATE users SET sigma = sigma + ?`, delta); err != nil {
		return fmt.Errorf("decay sigma: %w", err)
	}
	return nil
}

// ResetRating restores the default rating for one user.
func (s *UserStore) ResetRating(username string) error {
	res, err := s.db.Exec(`UPDATE users SET mu = ?, sigma = ? WHERE username = ?`,
		rating.DefaultMu, rating.DefaultSigma, username)
	if err != nil {
		return fmt.Errorf("reset rating for %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset rating for %s: %w", username, err)
	}
	if n == 0 {
		return fmt.Errorf("reset rating: no user %s", username)
	}
	return nil
}

// Ranked returns all users ordered by score, best first.
func (s *UserStore) Ranked() ([]models.User, error) {
	var users []models.User
	err := s.db.Select(&users,
		`SELECT `+userColumns+` FROM users ORDER BY (mu - 3.0 * sigma) DESC, username ASC`)
	if err != nil {
		return nil, fmt.Errorf("ranked users: %w", err)
	}
	return users, nil
}
