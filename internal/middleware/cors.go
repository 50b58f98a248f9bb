package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS lets browser dashboards hosted on other origins read the statistics
// API. Requests carry no cookies, tokens travel over the websocket instead,
// so any origin is acceptable.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	})
}
