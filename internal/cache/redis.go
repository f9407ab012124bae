package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client from a URL and pings it before handing
// it back, so a bad address fails at startup instead of on first use.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
