package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUser returns a public profile. No email is exposed here.
func (h HandlerSet) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.users.Profile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user, false)})
}
