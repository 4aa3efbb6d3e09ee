package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

const swapColumns = `
	id, requester_id, receiver_id, item_id, status, swap_type, points_offered, message,
	created_at, updated_at`

type SwapRepository struct {
	q querier
}

func (r *SwapRepository) Create(ctx context.Context, swap models.SwapRequest) error {
	const query = `
		INSERT INTO swap_requests (
			id, requester_id, receiver_id, item_id, status, swap_type, points_offered, message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
	`
	_, err := r.q.Exec(ctx, query,
		swap.ID,
		swap.RequesterID,
		swap.ReceiverID,
		swap.ItemID,
		swap.Status,
		swap.SwapType,
		swap.PointsOffered,
		swap.Message,
		swap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert swap request: %w", err)
	}
	return nil
}

func (r *SwapRepository) GetByID(ctx context.Context, id string) (models.SwapRequest, error) {
	return scanSwapRow(r.q.QueryRow(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`, id))
}

func (r *SwapRepository) GetForUpdate(ctx context.Context, id string) (models.SwapRequest, error) {
	return scanSwapRow(r.q.QueryRow(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *SwapRepository) UpdateStatus(ctx context.Context, id string, status models.SwapStatus) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE swap_requests SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrSwapNotFound
	}
	return nil
}

func (r *SwapRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM swap_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrSwapNotFound
	}
	return nil
}

func (r *SwapRepository) List(ctx context.Context, filter repository.SwapFilter, page repository.Page) ([]models.SwapRequest, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.PartyID != "" {
		p := arg(filter.PartyID)
		where = append(where, "(requester_id = "+p+" OR receiver_id = "+p+")")
	}
	if filter.ReceiverID != "" {
		where = append(where, "receiver_id = "+arg(filter.ReceiverID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}

	query := `SELECT ` + swapColumns + ` FROM swap_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(page.Limit) + " OFFSET " + arg(page.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list swap requests: %w", err)
	}
	defer rows.Close()

	var swaps []models.SwapRequest
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

func scanSwapRow(row pgx.Row) (models.SwapRequest, error) {
	swap, err := scanSwap(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SwapRequest{}, repository.ErrSwapNotFound
		}
		return models.SwapRequest{}, err
	}
	return swap, nil
}

func scanSwap(row pgx.Row) (models.SwapRequest, error) {
	var swap models.SwapRequest
	err := row.Scan(
		&swap.ID,
		&swap.RequesterID,
		&swap.ReceiverID,
		&swap.ItemID,
		&swap.Status,
		&swap.SwapType,
		&swap.PointsOffered,
		&swap.Message,
		&swap.CreatedAt,
		&swap.UpdatedAt,
	)
	return swap, err
}
