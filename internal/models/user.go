package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// UserStats are running counters. They only grow, except through
// corrective admin action.
type UserStats struct {
	ItemsListed  int
	ItemsSwapped int
	PointsEarned int
	PointsSpent  int
	Rating       int
	RatingCount  int
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	Role         UserRole
	Status       UserStatus
	AvatarURL    *string
	Bio          string
	Location     string
	Points       int
	Stats        UserStats
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// AverageRating returns the mean rating, or 0 when nobody rated the user yet.
func (u User) AverageRating() float64 {
	if u.Stats.RatingCount == 0 {
		return 0
	}
	return float64(u.Stats.Rating) / float64(u.Stats.RatingCount)
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
