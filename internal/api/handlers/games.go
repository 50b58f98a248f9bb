package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/database"
)

const defaultGamesLimit = 50

// RecentGames returns the latest finished games, newest first. The limit
// query parameter caps the result (default 50, max 500).
func RecentGames(games *database.GameStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultGamesLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		if limit > 500 {
			limit = 500
		}

		rows, err := games.Recent(limit)
		if err != nil {
			log.Error("failed to load recent games", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load games"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": rows})
	}
}
