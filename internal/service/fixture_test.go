package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"swapmarket/internal/cache"
	"swapmarket/internal/config"
	"swapmarket/internal/events"
	"swapmarket/internal/ids"
	"swapmarket/internal/lock"
	"swapmarket/internal/models"
	"swapmarket/internal/repository/memory"
	"swapmarket/internal/security"
	"swapmarket/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memory.Store
	clock    *testClock
	events   *events.Recorder
	objects  *storage.Memory
	featured *countingCache
	swaps    *SwapService
	items    *ItemService
	catalog  *CatalogService
	users    *UserService
	auth     *AuthService
}

func newFixture(t *testing.T, policy PointsPolicy) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	recorder := events.NewRecorder(256)
	objects := storage.NewMemory("http://objects.test")
	featured := &countingCache{}
	log := zerolog.Nop()

	auth := NewAuthService(store, config.SecurityConfig{
		JWTAccessSecret: "test-secret",
		JWTAccessTTL:    15 * time.Minute,
		JWTRefreshTTL:   24 * time.Hour,
		MaxSessions:     2,
		AdminEmails:     []string{"root@swap.test"},
	}, log).WithPasswordHasher(func(password string) ([]byte, error) {
		return security.HashPasswordWithParams(password, security.Argon2Params{
			Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8,
		})
	})
	auth.now = clock.Now

	return &fixture{
		store:    store,
		clock:    clock,
		events:   recorder,
		objects:  objects,
		featured: featured,
		swaps:    NewSwapService(store, lock.NewLocal(time.Second), recorder, featured, policy, clock.Now, log),
		items:    NewItemService(store, objects, recorder, featured, models.DefaultItemTTL, clock.Now, log),
		catalog:  NewCatalogService(store.Items(), featured, 10, clock.Now, log),
		users:    NewUserService(store),
		auth:     auth,
	}
}

// user creates a member holding points, recorded as earned.
func (f *fixture) user(t *testing.T, name string, points int) models.User {
	t.Helper()
	return f.member(t, name, points, models.UserRoleUser)
}

func (f *fixture) admin(t *testing.T) models.User {
	t.Helper()
	return f.member(t, "admin", 0, models.UserRoleAdmin)
}

func (f *fixture) member(t *testing.T, name string, points int, role models.UserRole) models.User {
	t.Helper()
	u := models.User{
		ID:     ids.New(),
		Name:   name,
		Email:  name + "@swap.test",
		Role:   role,
		Status: models.UserStatusActive,
		Points: points,
		Stats:  models.UserStats{PointsEarned: points},
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) reload(t *testing.T, id string) models.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) storedItem(t *testing.T, id string) models.Item {
	t.Helper()
	item, err := f.store.Items().GetByID(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (f *fixture) storedSwap(t *testing.T, id string) models.SwapRequest {
	t.Helper()
	swap, err := f.store.Swaps().GetByID(context.Background(), id)
	require.NoError(t, err)
	return swap
}

func itemInput(title string, points int) ItemInput {
	return ItemInput{
		Title:       title,
		Description: "Barely worn, from a smoke free home.",
		Category:    "women",
		Type:        "jackets",
		Size:        "M",
		Condition:   "like-new",
		Brand:       "Acme",
		Color:       "navy",
		Tags:        []string{"Denim", "denim", " warm "},
		Seasons:     []string{"fall"},
		Styles:      []string{"casual"},
		PointsValue: points,
	}
}

// listed creates an approved, active item owned by owner.
func (f *fixture) listed(t *testing.T, owner models.User, points int) models.Item {
	t.Helper()
	ctx := context.Background()
	item, err := f.items.Create(ctx, owner.ID, itemInput("Denim jacket", points))
	require.NoError(t, err)
	item, err = f.items.Approve(ctx, item.ID)
	require.NoError(t, err)
	return item
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, e := range f.events.Drain() {
		out = append(out, e.Type)
	}
	return out
}

type countingCache struct {
	mu          sync.Mutex
	items       []models.Item
	warm        bool
	sets        int
	invalidated int
}

func (c *countingCache) Get(context.Context) ([]models.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.warm {
		return nil, cache.ErrMiss
	}
	return c.items, nil
}

func (c *countingCache) Set(_ context.Context, items []models.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, c.warm = items, true
	c.sets++
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, c.warm = nil, false
	c.invalidated++
	return nil
}
