package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/metrics"
	"github.com/ruslan20200/ios-messages-generator/internal/storage"
)

const rateLimitMessage = "Слишком много попыток входа. Попробуйте позже."

// LoginRateLimit ограничивает попытки входа с одного IP: не больше max за window.
// При превышении - 429 с Retry-After. Если хранилище недоступно, запрос пропускается.
func LoginRateLimit(store storage.AttemptStore, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, retryAfter, err := store.Attempt(r.Context(), "login:"+ip, max, window)
			if err != nil {
				logger.Errorf("login rate limit ip=%s: %v", ip, err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				metrics.LoginAttempts.WithLabelValues(metrics.LoginRateLimited).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": rateLimitMessage, "retry_after": secs})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP - адрес клиента без порта. За доверенным прокси RemoteAddr уже переписан TrustedRealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
