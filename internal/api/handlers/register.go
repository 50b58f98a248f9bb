package handlers

import (
	"crypto/subtle"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/models"
)

// Usernames show up in log files and the monitoring output, so keep them to
// a single printable word.
var validUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// Register creates a new user account and returns its access token.
// Registration is gated by a shared key handed out to admitted participants.
func Register(cfg *config.Config, users *database.UserStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username        string `json:"username" binding:"required"`
			Password        string `json:"password" binding:"required"`
			RegistrationKey string `json:"registration_key"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		if cfg.RegistrationKey == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "registration is disabled"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.RegistrationKey), []byte(cfg.RegistrationKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid registration key"})
			return
		}
		if !validUsername.MatchString(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "username may only contain letters, digits, '_', '.' and '-' (max 32 characters)",
			})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}

		token := models.NewToken()
		id, err := users.Add(req.Username, hash, token, models.RoleUser)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				c.JSON(http.StatusConflict, gin.H{"error": "username is already taken"})
				return
			}
			log.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}

		log.Info("user registered", zap.String("username", req.Username), zap.Int64("user_id", id))
		c.JSON(http.StatusCreated, gin.H{
			"user_id":  id,
			"username": req.Username,
			"token":    token,
		})
	}
}
