// Package memory is an in-process implementation of the repository
// interfaces. It backs `storage.driver: memory` and the service tests.
//
// A single mutex guards all data. WithinTx holds it for the whole
// transaction and works on a copy that replaces the live data only when
// fn succeeds, which gives serializable all-or-nothing semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type Option func(*Store)

// WithClock overrides the time source used for updated_at style fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func New(opts ...Option) *Store {
	s := &Store{
		data: newState(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type state struct {
	users    map[string]models.User
	items    map[string]models.Item
	swaps    map[string]models.SwapRequest
	sessions map[string]models.Session
}

func newState() *state {
	return &state{
		users:    make(map[string]models.User),
		items:    make(map[string]models.Item),
		swaps:    make(map[string]models.SwapRequest),
		sessions: make(map[string]models.Session),
	}
}

func (st *state) clone() *state {
	c := &state{
		users:    make(map[string]models.User, len(st.users)),
		items:    make(map[string]models.Item, len(st.items)),
		swaps:    make(map[string]models.SwapRequest, len(st.swaps)),
		sessions: make(map[string]models.Session, len(st.sessions)),
	}
	for k, v := range st.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range st.items {
		c.items[k] = v.Clone()
	}
	for k, v := range st.swaps {
		c.swaps[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	return c
}

// access runs fn against some state. Outside a transaction it takes the
// store lock; inside one the lock is already held by WithinTx.
type access func(fn func(st *state) error) error

func (s *Store) locked(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{run: s.locked, now: s.now}
}

func (s *Store) Items() repository.ItemRepository {
	return &itemRepo{run: s.locked, now: s.now}
}

func (s *Store) Swaps() repository.SwapRepository {
	return &swapRepo{run: s.locked, now: s.now}
}

func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepo{run: s.locked, now: s.now}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	run := func(f func(st *state) error) error { return f(work) }
	if err := fn(txRepos{run: run, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Counts(ctx context.Context) (repository.Counts, error) {
	var c repository.Counts
	err := s.locked(func(st *state) error {
		c.Users = len(st.users)
		c.Items = len(st.items)
		for _, item := range st.items {
			switch item.Status {
			case models.ItemStatusActive:
				c.ActiveItems++
			case models.ItemStatusPending:
				c.PendingItems++
			}
		}
		c.Swaps = len(st.swaps)
		for _, swap := range st.swaps {
			switch swap.Status {
			case models.SwapStatusPending:
				c.PendingSwaps++
			case models.SwapStatusCompleted:
				c.CompletedSwap++
			}
		}
		return nil
	})
	return c, err
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

type txRepos struct {
	run access
	now func() time.Time
}

func (t txRepos) Users() repository.UserRepository { return &userRepo{run: t.run, now: t.now} }
func (t txRepos) Items() repository.ItemRepository { return &itemRepo{run: t.run, now: t.now} }
func (t txRepos) Swaps() repository.SwapRepository { return &swapRepo{run: t.run, now: t.now} }

func paginate[T any](list []T, page repository.Page) []T {
	if page.Offset >= len(list) {
		return nil
	}
	list = list[page.Offset:]
	if page.Limit > 0 && page.Limit < len(list) {
		list = list[:page.Limit]
	}
	return list
}
