package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/middleware"
	"swapmarket/internal/service"
)

type registerRequest struct {
	Name       string `json:"name" binding:"required,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	DeviceName string `json:"deviceName"`
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// sessionRequest names one device session by its refresh token. Refresh
// and logout both take it.
type sessionRequest struct {
	UserID       string `json:"userId" binding:"required"`
	DeviceID     string `json:"deviceId" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (r sessionRequest) input() service.RefreshInput {
	return service.RefreshInput{UserID: r.UserID, DeviceID: r.DeviceID, RefreshToken: r.RefreshToken}
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	DeviceID     string       `json:"deviceId"`
	User         userResponse `json:"user"`
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		DeviceName: req.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	h.respondAuth(c, http.StatusCreated, result, err)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	h.respondAuth(c, http.StatusOK, result, err)
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.auth.Refresh(c.Request.Context(), req.input())
	h.respondAuth(c, http.StatusOK, result, err)
}

// Logout needs the refresh token of the session it ends, so a leaked
// user and device id pair is not enough to sign someone out.
func (h HandlerSet) Logout(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.auth.SignOut(c.Request.Context(), req.input()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) respondAuth(c *gin.Context, status int, result service.AuthResult, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		DeviceID:     result.DeviceID,
		User:         newUserResponse(result.User, true),
	})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user, true)})
}

type sessionResponse struct {
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	claims, _ := middleware.CurrentClaims(c)

	sessions, err := h.auth.Sessions(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = sessionResponse{
			DeviceID:   s.DeviceID,
			DeviceName: s.DeviceName,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			LastSeenAt: s.LastSeenAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == claims.SessionID,
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

// RevokeSession signs out one of the caller's other devices. The current
// device uses Logout instead.
func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	deviceID := c.Param("deviceId")
	if claims, _ := middleware.CurrentClaims(c); claims.DeviceID == deviceID {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cannot_revoke_current_device"})
		return
	}
	if err := h.auth.RevokeDevice(c.Request.Context(), user.ID, deviceID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
