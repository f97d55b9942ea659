package storage

import (
	"context"
	"time"
)

// AttemptStore считает попытки по ключу в скользящем окне (ограничение частоты входа).
// Реализации: redis.Store (несколько экземпляров), memory.Store (один процесс, -dev).
type AttemptStore interface {
	// Attempt учитывает попытку. При превышении max за window возвращает allowed=false
	// и время, через которое можно повторить.
	Attempt(ctx context.Context, key string, max int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
	Close() error
}
