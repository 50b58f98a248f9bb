package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comprl/comprl/internal/config"
)

var startTime = time.Now()

// HealthCheck returns server health status.
func HealthCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"game":       cfg.GameClass,
			"server_url": cfg.ServerURL,
			"uptime":     time.Since(startTime).String(),
		})
	}
}
