package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// MaxConnectWait bounds the exponential ping retry on startup (default 30s).
	MaxConnectWait time.Duration
}

// Connect creates a client and pings the server, retrying with exponential
// backoff until it answers, MaxConnectWait elapses or ctx is cancelled.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*goredis.Client, error) {
	if log == nil {
		log = slog.Default()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	wait := cfg.MaxConnectWait
	if wait <= 0 {
		wait = 30 * time.Second
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 250 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = wait

	attempt := 0
	ping := func() error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pctx).Err()
	}
	notify := func(err error, next time.Duration) {
		log.Warn("redis ping failed, retrying", "addr", cfg.Addr, "attempt", attempt, "next", next, "err", err)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(eb, ctx), notify); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info("redis connected", "addr", cfg.Addr, "attempts", attempt)
	return client, nil
}
