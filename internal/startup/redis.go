package startup

import (
	"context"
	"time"

	redisstorage "github.com/ruslan20200/ios-messages-generator/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis с повторами.
func ConnectRedisWithRetry(ctx context.Context, redisURL string, maxWait time.Duration) (*redisstorage.Store, error) {
	var store *redisstorage.Store
	err := retry(ctx, "redis connect", maxWait, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s, err := redisstorage.New(pingCtx, redisURL)
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
