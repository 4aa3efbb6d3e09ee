// Package ledger holds the points balance rules embedded in a user record.
//
// The functions only mutate the user value they are given; persisting the
// result is the caller's job and must happen in the same transaction that
// read the balance.
package ledger

import (
	"errors"
	"fmt"

	"swapmarket/internal/models"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// Credit adds amount to the balance and to lifetime earnings.
func Credit(user *models.User, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	user.Points += amount
	user.Stats.PointsEarned += amount
	return nil
}

// Debit removes amount from the balance. A debit that would go negative
// is rejected and leaves the user untouched.
func Debit(user *models.User, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if user.Points < amount {
		return fmt.Errorf("%w: balance %d, required %d", ErrInsufficientPoints, user.Points, amount)
	}
	user.Points -= amount
	user.Stats.PointsSpent += amount
	return nil
}

// Transfer debits from and credits to as one step; on error neither changes.
func Transfer(from, to *models.User, amount int) error {
	if err := Debit(from, amount); err != nil {
		return err
	}
	if err := Credit(to, amount); err != nil {
		from.Points += amount
		from.Stats.PointsSpent -= amount
		return err
	}
	return nil
}

// Balanced reports whether points == earned - spent and the balance is not negative.
func Balanced(user models.User) bool {
	return user.Points >= 0 && user.Points == user.Stats.PointsEarned-user.Stats.PointsSpent
}
