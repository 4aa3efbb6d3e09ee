package service

import (
	"errors"
	"fmt"

	"swapmarket/internal/ledger"
	"swapmarket/internal/repository"
)

// Every failure a service returns wraps exactly one of these, so the HTTP
// layer can map it with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidState       = errors.New("invalid state")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientPoints = ledger.ErrInsufficientPoints
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func notAuthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotAuthorized, fmt.Sprintf(format, args...))
}

// translate turns repository sentinels into service sentinels and leaves
// anything else alone.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrSwapNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrEmailTaken):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}
