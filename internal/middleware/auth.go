package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/models"
	"swapmarket/internal/security"
	"swapmarket/internal/service"
)

const (
	CurrentUserKey  = "current_user"
	AccessClaimsKey = "access_claims"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, security.AccessClaims, error)
	Touch(ctx context.Context, sessionID, ip, userAgent string)
}

func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		user, claims, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrUserSuspended) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user_inactive"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		auth.Touch(c.Request.Context(), claims.SessionID, c.ClientIP(), c.GetHeader("User-Agent"))

		c.Set(AccessClaimsKey, claims)
		c.Set(CurrentUserKey, user)

		c.Next()
	}
}

// CurrentUser returns the user set by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(CurrentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	val, exists := c.Get(AccessClaimsKey)
	if !exists {
		return security.AccessClaims{}, false
	}
	claims, ok := val.(security.AccessClaims)
	return claims, ok
}
