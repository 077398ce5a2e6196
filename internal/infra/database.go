package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDialTimeout bounds connecting to and pinging a backing store when the
// caller passes no timeout.
const DefaultDialTimeout = 5 * time.Second

// NewPostgresPool opens the journal database. Connections identify themselves
// as appName in pg_stat_activity.
func NewPostgresPool(ctx context.Context, url, appName string, timeout time.Duration) (*pgxpool.Pool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	// The journal is append-mostly; a handful of connections is plenty.
	if cfg.MaxConns > 4 {
		cfg.MaxConns = 4
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout(timeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func dialTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultDialTimeout
	}
	return d
}
