// Package postgres implements the repository interfaces on top of pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapmarket/internal/repository"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Users() repository.UserRepository       { return &UserRepository{q: s.pool} }
func (s *Store) Items() repository.ItemRepository       { return &ItemRepository{q: s.pool} }
func (s *Store) Swaps() repository.SwapRepository       { return &SwapRepository{q: s.pool} }
func (s *Store) Sessions() repository.SessionRepository { return &SessionRepository{q: s.pool} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(txRepos{q: tx})
	})
}

func (s *Store) Counts(ctx context.Context) (repository.Counts, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM items WHERE status = 'active'),
			(SELECT COUNT(*) FROM items WHERE status = 'pending'),
			(SELECT COUNT(*) FROM swap_requests),
			(SELECT COUNT(*) FROM swap_requests WHERE status = 'pending'),
			(SELECT COUNT(*) FROM swap_requests WHERE status = 'completed')
	`
	var c repository.Counts
	err := s.pool.QueryRow(ctx, query).Scan(
		&c.Users,
		&c.Items,
		&c.ActiveItems,
		&c.PendingItems,
		&c.Swaps,
		&c.PendingSwaps,
		&c.CompletedSwap,
	)
	return c, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type txRepos struct {
	q querier
}

func (t txRepos) Users() repository.UserRepository { return &UserRepository{q: t.q} }
func (t txRepos) Items() repository.ItemRepository { return &ItemRepository{q: t.q} }
func (t txRepos) Swaps() repository.SwapRepository { return &SwapRepository{q: t.q} }
