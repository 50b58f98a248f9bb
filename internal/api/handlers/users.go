package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/database"
)

// UserStatistics returns one user's rating and win/draw/loss record,
// overall and per opponent.
func UserStatistics(users *database.UserStore, games *database.GameStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")

		u, err := users.ByName(username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
				return
			}
			log.Error("failed to load user", zap.String("username", username), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}

		wins, draws, losses, err := games.UserStatistics(u.ID)
		if err != nil {
			log.Error("failed to load user statistics", zap.String("username", username), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		pairs, err := games.PairStatistics(u.ID)
		if err != nil {
			log.Error("failed to load pair statistics", zap.String("username", username), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"username":  u.Username,
			"role":      u.Role,
			"mu":        u.Mu,
			"sigma":     u.Sigma,
			"score":     u.Score(),
			"wins":      wins,
			"draws":     draws,
			"losses":    losses,
			"opponents": pairs,
		})
	}
}
