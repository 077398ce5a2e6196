package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects the store backing wizard sessions, submit guards and
// attempt counters. timeout also bounds every command.
func NewRedisClient(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d := dialTimeout(timeout)
	opt.DialTimeout = d
	opt.ReadTimeout = d
	opt.WriteTimeout = d

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
