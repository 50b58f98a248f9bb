package server

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/models"
)

// PlayerManager tracks every live connection and which of them belong to an
// authenticated user. Multiple sessions may authenticate as the same user;
// each keeps its own player id. Owned by the scheduler goroutine.
type PlayerManager struct {
	users *database.UserStore
	log   *zap.Logger

	connected     map[models.PlayerID]*Session
	authenticated map[models.PlayerID]authedSession
}

type authedSession struct {
	session *Session
	userID  int64
}

func NewPlayerManager(users *database.UserStore, log *zap.Logger) *PlayerManager {
	return &PlayerManager{
		users:         users,
		log:           log,
		connected:     make(map[models.PlayerID]*Session),
		authenticated: make(map[models.PlayerID]authedSession),
	}
}

// Add registers a freshly connected, not yet authenticated session.
func (pm *PlayerManager) Add(s *Session) {
	pm.connected[s.ID] = s
}

// Auth validates the token and promotes the session to authenticated. A bad
// token, an unknown session or a database failure all report false.
func (pm *PlayerManager) Auth(id models.PlayerID, token string) bool {
	s, ok := pm.connected[id]
	if !ok {
		// The player may have disconnected while we waited for the token.
		return false
	}
	user, err := pm.users.ByToken(token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			pm.log.Error("token lookup failed", zap.Error(err))
		}
		return false
	}
	s.UserID = user.ID
	s.Username = user.Username
	pm.authenticated[id] = authedSession{session: s, userID: user.ID}
	pm.log.Info("player authenticated",
		zap.String("user", user.Username),
		zap.String("player_id", string(id)))
	return true
}

// Remove forgets the session. Safe to call for sessions that were never
// added or never authenticated.
func (pm *PlayerManager) Remove(s *Session) {
	delete(pm.connected, s.ID)
	delete(pm.authenticated, s.ID)
}

// PlayerByID returns the session for an authenticated player, or nil.
func (pm *PlayerManager) PlayerByID(id models.PlayerID) *Session {
	if a, ok := pm.authenticated[id]; ok {
		return a.session
	}
	return nil
}

// UserID resolves a player id to the user it authenticated as.
func (pm *PlayerManager) UserID(id models.PlayerID) (int64, bool) {
	a, ok := pm.authenticated[id]
	return a.userID, ok
}

// User loads the current account state for a user id.
func (pm *PlayerManager) User(userID int64) (*models.User, error) {
	return pm.users.ByID(userID)
}

// MatchmakingParameters returns the stored rating of a user.
func (pm *PlayerManager) MatchmakingParameters(userID int64) (mu, sigma float64, err error) {
	return pm.users.MatchmakingParameters(userID)
}

// SetMatchmakingParameters writes an updated rating back to the database.
func (pm *PlayerManager) SetMatchmakingParameters(userID int64, mu, sigma float64) error {
	return pm.users.SetMatchmakingParameters(userID, mu, sigma)
}

// BroadcastError sends an error notification to every connected player,
// authenticated or not.
func (pm *PlayerManager) BroadcastError(msg string) {
	for _, s := range pm.connected {
		s.NotifyError(msg)
	}
}

// DisconnectAll drops every connection, e.g. on server shutdown.
func (pm *PlayerManager) DisconnectAll(reason string) {
	sessions := make([]*Session, 0, len(pm.connected))
	for _, s := range pm.connected {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		s.Disconnect(reason)
	}
}

func (pm *PlayerManager) ConnectedCount() int     { return len(pm.connected) }
func (pm *PlayerManager) AuthenticatedCount() int { return len(pm.authenticated) }

// ConnectedSessions returns all live sessions, for monitoring.
func (pm *PlayerManager) ConnectedSessions() []*Session {
	sessions := make([]*Session, 0, len(pm.connected))
	for _, s := range pm.connected {
		sessions = append(sessions, s)
	}
	return sessions
}
