package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = time.Hour

// Locker hands out exclusive run rights per job across worker replicas.
type Locker interface {
	Acquire(ctx context.Context, job string) (release func(context.Context) error, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLocker implements Locker with SETNX and a TTL, so a crashed worker
// frees its jobs once the TTL lapses.
type RedisLocker struct {
	store  lockStore
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(store lockStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if prefix == "" {
		return nil, errors.New("lock prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, prefix: prefix, ttl: ttl}, nil
}

func (l *RedisLocker) key(job string) string {
	return fmt.Sprintf("%s:%s", l.prefix, job)
}

func (l *RedisLocker) Acquire(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	key := l.key(job)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	// a lapsed TTL may have handed the key to another worker; only the
	// owner token may delete it
	release := func(ctx context.Context) error {
		if _, err := l.store.DeleteIfEquals(ctx, key, owner); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
