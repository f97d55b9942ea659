package middleware

import (
	"context"

	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

type contextKey string

const IdentityKey contextKey = "identity"

// WithIdentity кладёт проверенного владельца запроса в контекст.
func WithIdentity(ctx context.Context, id *service.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity возвращает владельца запроса (устанавливается Authenticate).
func GetIdentity(ctx context.Context) (*service.Identity, bool) {
	v, ok := ctx.Value(IdentityKey).(*service.Identity)
	return v, ok && v != nil
}
