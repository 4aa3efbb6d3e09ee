package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"swapmarket/internal/ids"
	"swapmarket/internal/lock"
	"swapmarket/internal/middleware"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
	"swapmarket/internal/service"
)

// Pinger reports the health of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	auth        *service.AuthService
	items       *service.ItemService
	catalog     *service.CatalogService
	swaps       *service.SwapService
	users       *service.UserService
	checks      map[string]Pinger
}

type Services struct {
	Auth    *service.AuthService
	Items   *service.ItemService
	Catalog *service.CatalogService
	Swaps   *service.SwapService
	Users   *service.UserService
}

func NewHandlerSet(log zerolog.Logger, environment string, services Services, checks map[string]Pinger) HandlerSet {
	return HandlerSet{
		log:         log,
		environment: environment,
		auth:        services.Auth,
		items:       services.Items,
		catalog:     services.Catalog,
		swaps:       services.Swaps,
		users:       services.Users,
		checks:      checks,
	}
}

// Routes mounts every endpoint on router.
func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireAuth := middleware.Auth(h.auth)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		protected := auth.Group("")
		protected.Use(requireAuth)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)
	}

	items := router.Group("/items")
	{
		items.GET("", h.ListItems)
		items.GET("/featured", h.FeaturedItems)
		items.GET("/search", h.SearchItems)
		items.GET("/:id", h.GetItem)
		items.POST("/:id/view", h.ViewItem)

		owned := items.Group("")
		owned.Use(requireAuth)
		owned.POST("", h.CreateItem)
		owned.PUT("/:id", h.UpdateItem)
		owned.DELETE("/:id", h.RemoveItem)
		owned.POST("/:id/like", h.LikeItem)
		owned.POST("/:id/images", h.UploadItemImage)
	}

	swaps := router.Group("/swaps")
	swaps.Use(requireAuth)
	{
		swaps.POST("", h.CreateSwap)
		swaps.GET("/user", h.UserSwaps)
		swaps.GET("/pending", h.PendingSwaps)
		swaps.GET("/:id", h.GetSwap)
		swaps.POST("/:id/accept", h.AcceptSwap)
		swaps.POST("/:id/reject", h.RejectSwap)
		swaps.POST("/:id/complete", h.CompleteSwap)
		swaps.POST("/:id/cancel", h.CancelSwap)
		swaps.DELETE("/:id", h.DeleteSwap)
	}

	users := router.Group("/users")
	{
		users.GET("/me/items", requireAuth, h.MyItems)
		users.GET("/:id", h.GetUser)
	}

	admin := router.Group("/admin")
	admin.Use(requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/users", h.AdminListUsers)
		admin.GET("/items", h.AdminListItems)
		admin.GET("/swaps", h.AdminListSwaps)
		admin.POST("/items/:id/approve", h.AdminApproveItem)
		admin.POST("/items/:id/reject", h.AdminRejectItem)
		admin.POST("/items/:id/feature", h.AdminFeatureItem)
	}
}

// fail writes the response for a service error. Each failure class has
// its own status so clients can tell them apart.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotAuthorized):
		status, code = http.StatusUnauthorized, "not_authorized"
	case errors.Is(err, service.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrInsufficientPoints):
		status, code = http.StatusUnprocessableEntity, "insufficient_points"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrUserSuspended):
		status, code = http.StatusForbidden, "user_suspended"
	case errors.Is(err, lock.ErrTimeout):
		status, code = http.StatusServiceUnavailable, "busy"
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.RequestIDFrom(c)).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": code})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
}

// pathID returns the :id parameter. Malformed ids cannot exist, so they
// answer 404 without touching the store.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !ids.Valid(id) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown id"})
		return "", false
	}
	return id, true
}

func currentUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func pageFromQuery(c *gin.Context) (repository.Page, int) {
	limit := defaultPerPage
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= maxPerPage {
			limit = v
		}
	}
	page := 1
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 1 {
			page = v
		}
	}
	return repository.Page{Limit: limit, Offset: (page - 1) * limit}, page
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}
