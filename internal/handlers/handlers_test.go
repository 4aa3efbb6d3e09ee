package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"swapmarket/internal/cache"
	"swapmarket/internal/config"
	"swapmarket/internal/events"
	"swapmarket/internal/lock"
	"swapmarket/internal/middleware"
	"swapmarket/internal/models"
	"swapmarket/internal/repository/memory"
	"swapmarket/internal/security"
	"swapmarket/internal/service"
	"swapmarket/internal/storage"
)

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zerolog.Nop()
	store := memory.New()
	featured := cache.NoFeatured{}
	publisher := events.NopPublisher{}

	auth := service.NewAuthService(store, config.SecurityConfig{
		JWTAccessSecret: "handler-secret",
		JWTAccessTTL:    15 * time.Minute,
		JWTRefreshTTL:   24 * time.Hour,
		MaxSessions:     5,
		AdminEmails:     []string{"root@swap.test"},
	}, log).WithPasswordHasher(func(password string) ([]byte, error) {
		return security.HashPasswordWithParams(password, security.Argon2Params{
			Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8,
		})
	})

	set := NewHandlerSet(log, "test", Services{
		Auth:    auth,
		Items:   service.NewItemService(store, storage.NewMemory("http://objects.test"), publisher, featured, models.DefaultItemTTL, nil, log),
		Catalog: service.NewCatalogService(store.Items(), featured, 10, nil, log),
		Swaps:   service.NewSwapService(store, lock.NewLocal(time.Second), publisher, featured, service.PointsExact, nil, log),
		Users:   service.NewUserService(store),
	}, map[string]Pinger{"database": store})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	set.Routes(engine.Group("/api"))
	return &testAPI{t: t, engine: engine}
}

func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

type account struct {
	id      string
	token   string
	device  string
	refresh string
}

func (a *testAPI) register(name, email string) account {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "correct horse",
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	return account{
		id:      user["id"].(string),
		token:   body["accessToken"].(string),
		device:  body["deviceId"].(string),
		refresh: body["refreshToken"].(string),
	}
}

func (a *testAPI) createItem(owner account, points int) string {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/items", owner.token, gin.H{
		"title":       "Denim jacket",
		"description": "Barely worn",
		"category":    "women",
		"type":        "jackets",
		"size":        "M",
		"condition":   "good",
		"color":       "navy",
		"pointsValue": points,
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	item := body["item"].(map[string]any)
	require.Equal(a.t, "pending", item["status"])
	return item["id"].(string)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(http.MethodGet, "/api/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	sam := api.register("Sam", "sam@swap.test")

	status, body := api.do(http.MethodGet, "/api/auth/me", sam.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "sam@swap.test", body["user"].(map[string]any)["email"])

	status, _ = api.do(http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "sam@swap.test", "password": "nope nope"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_credentials", body["error"])

	status, body = api.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Sam", "email": "sam@swap.test", "password": "correct horse"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "validation_error", body["error"])

	status, body = api.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Kim", "email": "kim@swap.test", "password": "short"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "validation_error", body["error"])

	status, body = api.do(http.MethodGet, "/api/auth/sessions", sam.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["sessions"], 1)

	status, _ = api.do(http.MethodPost, "/api/auth/logout", "", gin.H{
		"userId": sam.id, "deviceId": sam.device, "refreshToken": "guessed",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/api/auth/logout", "", gin.H{
		"userId": sam.id, "deviceId": sam.device, "refreshToken": sam.refresh,
	})
	require.Equal(t, http.StatusNoContent, status)

	status, body = api.do(http.MethodGet, "/api/auth/me", sam.token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_token", body["error"])
}

func TestPublicProfileHidesEmail(t *testing.T) {
	api := newTestAPI(t)
	sam := api.register("Sam", "sam@swap.test")

	status, body := api.do(http.MethodGet, "/api/users/"+sam.id, "", nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	require.Equal(t, "Sam", user["name"])
	require.NotContains(t, user, "email")

	status, _ = api.do(http.MethodGet, "/api/users/not-an-id", "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestModerationAndCatalog(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Owner", "owner@swap.test")
	admin := api.register("Root", "root@swap.test")
	itemID := api.createItem(owner, 40)

	status, _ := api.do(http.MethodGet, "/api/items/"+itemID, "", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/api/admin/items/"+itemID+"/approve", owner.token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, body := api.do(http.MethodPost, "/api/admin/items/"+itemID+"/approve", admin.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "active", body["item"].(map[string]any)["status"])

	status, body = api.do(http.MethodPost, "/api/admin/items/"+itemID+"/approve", admin.token, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_state", body["error"])

	status, body = api.do(http.MethodGet, "/api/items?category=women", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"], 1)

	status, _ = api.do(http.MethodGet, "/api/items?sort=random", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodPost, "/api/items/"+itemID+"/like", admin.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["liked"])
	require.EqualValues(t, 1, body["likesCount"])

	status, body = api.do(http.MethodGet, "/api/admin/stats", admin.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body)
}

func TestSwapLifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Owner", "owner@swap.test")
	admin := api.register("Root", "root@swap.test")
	buyer := api.register("Buyer", "buyer@swap.test")

	pointsItem := api.createItem(owner, 40)
	directItem := api.createItem(owner, 25)
	for _, id := range []string{pointsItem, directItem} {
		status, _ := api.do(http.MethodPost, "/api/admin/items/"+id+"/approve", admin.token, nil)
		require.Equal(t, http.StatusOK, status)
	}

	status, _ := api.do(http.MethodPost, "/api/swaps", "", gin.H{"item": directItem, "swapType": "direct"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/api/swaps", buyer.token, gin.H{"item": directItem, "swapType": "barter"})
	require.Equal(t, http.StatusBadRequest, status)

	// A points swap the buyer cannot pay for fails at completion.
	status, body := api.do(http.MethodPost, "/api/swaps", buyer.token, gin.H{
		"item": pointsItem, "swapType": "points", "pointsOffered": 40,
	})
	require.Equal(t, http.StatusCreated, status, body)
	pointsSwap := body["swap"].(map[string]any)["id"].(string)

	status, _ = api.do(http.MethodPost, "/api/swaps/"+pointsSwap+"/accept", buyer.token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/api/swaps/"+pointsSwap+"/accept", owner.token, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = api.do(http.MethodPost, "/api/swaps/"+pointsSwap+"/complete", buyer.token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "insufficient_points", body["error"])

	status, body = api.do(http.MethodPost, "/api/swaps", buyer.token, gin.H{"item": directItem, "swapType": "direct"})
	require.Equal(t, http.StatusCreated, status, body)
	directSwap := body["swap"].(map[string]any)["id"].(string)

	status, body = api.do(http.MethodGet, "/api/swaps/pending", owner.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["swaps"], 1)

	status, _ = api.do(http.MethodPost, "/api/swaps/"+directSwap+"/accept", owner.token, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = api.do(http.MethodPost, "/api/swaps/"+directSwap+"/complete", buyer.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "completed", body["swap"].(map[string]any)["status"])

	status, body = api.do(http.MethodPost, "/api/swaps/"+directSwap+"/accept", owner.token, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_state", body["error"])

	status, _ = api.do(http.MethodGet, "/api/items/"+directItem, "", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body = api.do(http.MethodGet, "/api/swaps/user", buyer.token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["swaps"], 2)

	status, _ = api.do(http.MethodGet, "/api/swaps/not-an-id", buyer.token, nil)
	require.Equal(t, http.StatusNotFound, status)
}
