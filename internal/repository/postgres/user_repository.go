package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

const userColumns = `
	id, name, email, password_hash, role, status, avatar_url, bio, location,
	points, items_listed, items_swapped, points_earned, points_spent, rating, rating_count,
	created_at, updated_at`

type UserRepository struct {
	q querier
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, name, email, password_hash, role, status, avatar_url, bio, location,
			points, items_listed, items_swapped, points_earned, points_spent, rating, rating_count,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16,
			NOW(), NOW()
		)
	`

	_, err := r.q.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.AvatarURL,
		user.Bio,
		user.Location,
		user.Points,
		user.Stats.ItemsListed,
		user.Stats.ItemsSwapped,
		user.Stats.PointsEarned,
		user.Stats.PointsSpent,
		user.Stats.Rating,
		user.Stats.RatingCount,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.scanOne(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.scanOne(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (models.User, error) {
	return r.scanOne(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (r *UserRepository) UpdateLedger(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET points = $2,
		    items_listed = $3,
		    items_swapped = $4,
		    points_earned = $5,
		    points_spent = $6,
		    rating = $7,
		    rating_count = $8,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.q.Exec(ctx, query,
		user.ID,
		user.Points,
		user.Stats.ItemsListed,
		user.Stats.ItemsSwapped,
		user.Stats.PointsEarned,
		user.Stats.PointsSpent,
		user.Stats.Rating,
		user.Stats.RatingCount,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, page repository.Page) ([]models.User, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) scanOne(row pgx.Row) (models.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, repository.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.AvatarURL,
		&user.Bio,
		&user.Location,
		&user.Points,
		&user.Stats.ItemsListed,
		&user.Stats.ItemsSwapped,
		&user.Stats.PointsEarned,
		&user.Stats.PointsSpent,
		&user.Stats.Rating,
		&user.Stats.RatingCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}
