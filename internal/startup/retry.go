package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
)

const maxBackoff = 30 * time.Second

// retry повторяет attempt с экспоненциальной паузой (2s, 4s ... 30s), пока не истечёт maxWait
// или не будет отменён ctx. what попадает в лог.
func retry(ctx context.Context, what string, maxWait time.Duration, attempt func(context.Context) error) error {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s (gave up after %v): %w", what, maxWait, err)
		}
		logger.Errorf("%s failed, retry in %v: %v", what, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
