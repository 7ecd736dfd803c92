package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// New returns a client for addr that has answered a PING.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}
