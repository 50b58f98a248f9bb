package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comprl/comprl/internal/api/handlers"
	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/middleware"
)

// NewRouter builds the HTTP surface: the websocket endpoint agents connect
// to plus a small JSON API for registration and statistics.
func NewRouter(cfg *config.Config, log *zap.Logger, users *database.UserStore, games *database.GameStore, acceptWS http.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS())

	router.GET("/ws", func(c *gin.Context) {
		acceptWS(c.Writer, c.Request)
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(cfg))
		v1.POST("/register", handlers.Register(cfg, users, log))
		v1.GET("/leaderboard", handlers.Leaderboard(users, log))
		v1.GET("/users/:username", handlers.UserStatistics(users, games, log))
		v1.GET("/games", handlers.RecentGames(games, log))
	}

	return router
}
