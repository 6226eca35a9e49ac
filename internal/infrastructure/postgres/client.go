package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// NewClient opens a pgx pool and verifies connectivity with a bounded retry
// loop. A service that cannot reach its store on boot refuses to start, so
// exhausting the retries is surfaced to the caller.
func NewClient(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		if i > 0 {
			time.Sleep(2 * time.Second)
		}
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			continue
		}
		if err = pool.Ping(ctx); err == nil {
			return pool, nil
		}
		pool.Close()
	}
	return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
}
