package repository

import (
	"context"
	"errors"
	"time"

	"swapmarket/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrSwapNotFound    = errors.New("swap request not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmailTaken      = errors.New("email already registered")
)

type Page struct {
	Limit  int
	Offset int
}

// ItemFilter narrows catalog queries. Zero values mean "no filter".
type ItemFilter struct {
	Query      string
	Category   string
	Size       string
	Condition  string
	Brand      string
	Color      string
	MinPoints  int
	MaxPoints  int
	OwnerID    string
	Featured   bool
	OnlyActive bool
	// Now is used together with OnlyActive to hide items whose expiry has passed
	// even if nobody loaded them yet.
	Now  time.Time
	Sort string
}

const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortPointsAsc  = "points_asc"
	SortPointsDesc = "points_desc"
	SortViews      = "views"
)

type SwapFilter struct {
	// PartyID matches swaps where the user is requester or receiver.
	PartyID    string
	ReceiverID string
	Status     models.SwapStatus
}

type Counts struct {
	Users         int
	Items         int
	ActiveItems   int
	PendingItems  int
	Swaps         int
	PendingSwaps  int
	CompletedSwap int
}

type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	// GetForUpdate reads the user and, inside a transaction, locks the row
	// until commit.
	GetForUpdate(ctx context.Context, id string) (models.User, error)
	// UpdateLedger persists points and stats.
	UpdateLedger(ctx context.Context, user models.User) error
	List(ctx context.Context, page Page) ([]models.User, error)
}

type ItemRepository interface {
	Create(ctx context.Context, item models.Item) error
	GetByID(ctx context.Context, id string) (models.Item, error)
	GetForUpdate(ctx context.Context, id string) (models.Item, error)
	// Update persists every item column plus its images. Likes and the
	// swap-request index have dedicated methods.
	Update(ctx context.Context, item models.Item) error
	SetLiked(ctx context.Context, itemID, userID string, liked bool) error
	AddSwapRequest(ctx context.Context, itemID, swapID string) error
	RemoveSwapRequest(ctx context.Context, itemID, swapID string) error
	IncrementViews(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, filter ItemFilter, page Page) ([]models.Item, error)
}

type SwapRepository interface {
	Create(ctx context.Context, swap models.SwapRequest) error
	GetByID(ctx context.Context, id string) (models.SwapRequest, error)
	GetForUpdate(ctx context.Context, id string) (models.SwapRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.SwapStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter SwapFilter, page Page) ([]models.SwapRequest, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, userID string, hash []byte) (models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByDevice(ctx context.Context, userID, deviceID string) error
	Touch(ctx context.Context, id, ip, userAgent string) error
}

// Tx is one unit of work. Everything done through it commits or rolls back together.
type Tx interface {
	Users() UserRepository
	Items() ItemRepository
	Swaps() SwapRepository
}

type Store interface {
	Users() UserRepository
	Items() ItemRepository
	Swaps() SwapRepository
	Sessions() SessionRepository
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Counts(ctx context.Context) (Counts, error)
	Ping(ctx context.Context) error
	Close()
}
