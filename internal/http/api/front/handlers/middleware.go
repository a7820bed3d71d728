package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kaamsetu-in/kaamsetu/internal/auth"
	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
	"gorm.io/gorm"
)

// Context keys set by the auth middleware.
const (
	ctxUserIDKey = "userID"
	ctxUserRole  = "userRole"
)

// UserAuthMiddleware validates the bearer token and loads the session user.
func UserAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, errParse := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), jwtCfg)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		if !user.Active || user.Disabled || !user.Verified() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled or unverified"})
			return
		}

		c.Set(ctxUserIDKey, user.ID)
		c.Set(ctxUserRole, user.Role)
		c.Next()
	}
}

// RequireRole rejects requests from the wrong marketplace side.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if getUserRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden for this role"})
			return
		}
		c.Next()
	}
}

// getUserID returns the authenticated user ID, zero when absent.
func getUserID(c *gin.Context) uint64 {
	v, exists := c.Get(ctxUserIDKey)
	if !exists {
		return 0
	}
	id, ok := v.(uint64)
	if !ok {
		return 0
	}
	return id
}

// getUserRole returns the authenticated user role, zero when absent.
func getUserRole(c *gin.Context) models.UserRole {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return 0
	}
	role, ok := v.(models.UserRole)
	if !ok {
		return 0
	}
	return role
}
