package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a panic in a handler into a 500 with the same body as
// any other internal failure.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			event := log.Error().
				Interface("panic", r).
				Str("request_id", RequestIDFrom(c)).
				Str("method", c.Request.Method).
				Str("route", c.FullPath())
			if user, ok := CurrentUser(c); ok {
				event = event.Str("user_id", user.ID)
			}
			event.Msg("handler panicked")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}()
		c.Next()
	}
}
