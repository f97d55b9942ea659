package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
)

const keyPrefix = "attempts:"

// Store - счётчик попыток в Redis: INCR, EXPIRE на первой попытке, TTL для Retry-After.
// Окно фиксированное от первой попытки, общее для всех экземпляров сервиса.
type Store struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{cli: cli}, nil
}

// NewFromClient оборачивает готовый клиент.
func NewFromClient(cli *redis.Client) *Store {
	return &Store{cli: cli}
}

func (s *Store) Close() error {
	return s.cli.Close()
}

func (s *Store) Attempt(ctx context.Context, key string, max int, window time.Duration) (bool, time.Duration, error) {
	k := keyPrefix + key
	n, err := s.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := s.cli.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
	}
	if n <= int64(max) {
		return true, 0, nil
	}
	ttl, err := s.cli.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		// Ключ без срока (EXPIRE не прошёл): ставим окно заново.
		if err := s.cli.Expire(ctx, k, window).Err(); err != nil {
			logger.Warnf("redis: expire %s: %v", k, err)
		}
		ttl = window
	}
	return false, ttl, nil
}
