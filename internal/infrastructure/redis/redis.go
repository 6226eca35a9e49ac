package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string // optional
	DB       int    // optional
}

// NewClient opens a redis client and verifies connectivity with a bounded
// retry loop. The cache and both limiter layers run on this client, so a
// service that cannot reach redis on boot refuses to start.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var err error
	for i := 0; i < 5; i++ {
		if i > 0 {
			time.Sleep(2 * time.Second)
		}
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
	}
	client.Close()
	return nil, fmt.Errorf("failed to ping redis after retries: %w", err)
}
