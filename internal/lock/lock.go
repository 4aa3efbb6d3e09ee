// Package lock provides per-key mutual exclusion for swap transitions.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"swapmarket/internal/ids"
)

var ErrTimeout = errors.New("lock: timed out waiting for key")

// Locker serializes work on a key. Acquire blocks until the key is free,
// the timeout passes or ctx is done. The returned func releases the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process keyed mutex.
type Local struct {
	mu      sync.Mutex
	keys    map[string]*entry
	timeout time.Duration
}

type entry struct {
	ch      chan struct{}
	waiters int
}

func NewLocal(timeout time.Duration) *Local {
	return &Local{keys: make(map[string]*entry), timeout: timeout}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.done(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.done(key, e)
		})
	}, nil
}

func (l *Local) done(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.keys, key)
	}
}

// releaseScript deletes the key only when it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a lock shared by every API process using the same Redis.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

func NewRedis(client *redis.Client, ttl, timeout time.Duration) *Redis {
	return &Redis{
		client:  client,
		prefix:  "lock:swap:",
		ttl:     ttl,
		timeout: timeout,
		retry:   25 * time.Millisecond,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := ids.New()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err()
		})
	}, nil
}
