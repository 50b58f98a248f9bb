package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/database"
)

// Leaderboard returns all users ordered by score, best first.
func Leaderboard(users *database.UserStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ranked, err := users.Ranked()
		if err != nil {
			log.Error("failed to load leaderboard", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}

		entries := make([]gin.H, 0, len(ranked))
		for i, u := range ranked {
			entries = append(entries, gin.H{
				"rank":     i + 1,
				"username": u.Username,
				"role":     u.Role,
				"mu":       u.Mu,
				"sigma":    u.Sigma,
				"score":    u.Score(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
	}
}
