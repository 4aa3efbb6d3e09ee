package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type userRepo struct {
	run access
	now func() time.Time
}

func cloneUser(u models.User) models.User {
	u.PasswordHash = slices.Clone(u.PasswordHash)
	if u.AvatarURL != nil {
		avatar := *u.AvatarURL
		u.AvatarURL = &avatar
	}
	return u
}

func (r *userRepo) Create(_ context.Context, user models.User) error {
	return r.run(func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return repository.ErrEmailTaken
			}
		}
		now := r.now()
		user.CreatedAt = now
		user.UpdatedAt = now
		st.users[user.ID] = cloneUser(user)
		return nil
	})
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	var found models.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				found = cloneUser(u)
				return nil
			}
		}
		return repository.ErrUserNotFound
	})
	return found, err
}

func (r *userRepo) GetByID(_ context.Context, id string) (models.User, error) {
	var found models.User
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		found = cloneUser(u)
		return nil
	})
	return found, err
}

func (r *userRepo) GetForUpdate(ctx context.Context, id string) (models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) UpdateLedger(_ context.Context, user models.User) error {
	return r.run(func(st *state) error {
		stored, ok := st.users[user.ID]
		if !ok {
			return repository.ErrUserNotFound
		}
		stored.Points = user.Points
		stored.Stats = user.Stats
		stored.UpdatedAt = r.now()
		st.users[user.ID] = stored
		return nil
	})
}

func (r *userRepo) List(_ context.Context, page repository.Page) ([]models.User, error) {
	var out []models.User
	err := r.run(func(st *state) error {
		users := make([]models.User, 0, len(st.users))
		for _, u := range st.users {
			users = append(users, cloneUser(u))
		}
		slices.SortFunc(users, func(a, b models.User) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(b.ID, a.ID)
		})
		out = paginate(users, page)
		return nil
	})
	return out, err
}
