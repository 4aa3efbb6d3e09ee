package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin lets only administrators through. It runs after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		switch {
		case !ok:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		case !user.IsAdmin():
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_only"})
		default:
			c.Next()
		}
	}
}
