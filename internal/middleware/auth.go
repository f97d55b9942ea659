package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/policy"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

// Authenticator проверяет токен и возвращает владельца запроса (service.AuthService).
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*service.Identity, error)
}

// Authenticate берёт токен из Authorization: Bearer, иначе из cookie, и пропускает запрос
// только при успешной проверке сессии. 401 - нет или неверный токен, 403/410 - отказ политики.
func Authenticate(authSvc Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r, cookieName)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id, err := authSvc.Authenticate(r.Context(), raw)
			if err != nil {
				if pe, ok := service.AsPolicyError(err); ok {
					writeError(w, pe.Status(), pe.Error())
					return
				}
				if errors.Is(err, service.ErrUnauthorized) {
					logger.Debugf("auth rejected token=%s: %v", MaskToken(raw), err)
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				logger.Errorf("authenticate %s %s: %v", r.Method, r.URL.Path, err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin пропускает только роли с правом управления пользователями. Ставится после Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !policy.Capabilities(id.Role).Has(policy.CapManageUsers) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken достаёт токен из заголовка Authorization или, если его нет, из cookie.
func BearerToken(r *http.Request, cookieName string) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
