package service

import (
	"context"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Profile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	return user, translate(err)
}

func (s *UserService) List(ctx context.Context, page repository.Page) ([]models.User, error) {
	users, err := s.store.Users().List(ctx, page)
	return users, translate(err)
}

// Stats returns the platform counters shown on the admin dashboard.
func (s *UserService) Stats(ctx context.Context) (repository.Counts, error) {
	return s.store.Counts(ctx)
}
