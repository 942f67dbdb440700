// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// lock.go provides a Valkey-backed mutual exclusion lock. A holder owns the
// key through a random token; only the owner can release it, and the TTL
// frees the key if the holder dies mid-run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ExportLockKey guards regeneration of the theme export artifacts.
	ExportLockKey = "lock:theme-export"

	// DefaultLockTTL bounds how long a crashed holder can block others.
	DefaultLockTTL = 2 * time.Minute

	// DefaultRetryInterval is the wait between acquisition attempts.
	DefaultRetryInterval = 100 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a named lock in Valkey.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
}

// NewLock creates a lock on key. A zero ttl uses DefaultLockTTL.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl == 0 {
		ttl = DefaultLockTTL
	}
	return &Lock{client: client, key: key, ttl: ttl, retry: DefaultRetryInterval}
}

// Acquire blocks until the lock is held or ctx is done. The returned func
// releases it and is safe to call more than once.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
		}
		if ok {
			slog.Debug("lock acquired", "key", l.key)
			return l.releaser(token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", l.key, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *Lock) releaser(token string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(token) }) }
}

func (l *Lock) release(token string) {
	// A fresh context so a cancelled run still frees the key.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("lock release failed", "key", l.key, "error", err)
		return
	}
	if n == 0 {
		slog.Warn("lock expired before release", "key", l.key)
	}
}
