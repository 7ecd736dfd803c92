// Package redis holds per-URL locks in Redis so that several service
// instances sharing one store serialize upserts of the same URL.
package redis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix        = "url-shortener:lock:"
	DefaultTTL           = 5 * time.Second
	DefaultRetryInterval = 10 * time.Millisecond
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Option func(*URLLocker)

func WithPrefix(prefix string) Option {
	return func(l *URLLocker) {
		l.prefix = prefix
	}
}

// WithTTL bounds how long a lock survives a crashed holder.
func WithTTL(ttl time.Duration) Option {
	return func(l *URLLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithRetryInterval(interval time.Duration) Option {
	return func(l *URLLocker) {
		if interval > 0 {
			l.retryInterval = interval
		}
	}
}

type URLLocker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

func NewURLLocker(client redis.UniversalClient, opts ...Option) *URLLocker {
	l := &URLLocker{
		client:        client,
		prefix:        DefaultPrefix,
		ttl:           DefaultTTL,
		retryInterval: DefaultRetryInterval,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Lock acquires every key in sorted order, polling until each is free or ctx
// is done. On failure the keys already held are released.
func (l *URLLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	const op = "adapter.locker.redis.URLLocker.Lock"

	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := l.acquire(ctx, l.prefix+key, token); err != nil {
			l.release(held, token)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		held = append(held, l.prefix+key)
	}

	return func() {
		l.release(held, token)
	}, nil
}

func (l *URLLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to set lock key %q: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs on its own context so that locks taken under a cancelled
// request are still freed.
func (l *URLLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		unlockScript.Run(ctx, l.client, []string{keys[i]}, token)
	}
}
