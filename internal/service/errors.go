package service

import (
	"errors"

	"github.com/ruslan20200/ios-messages-generator/internal/policy"
)

// MsgInvalidCredentials - общий ответ для неизвестного логина и неверного пароля.
const MsgInvalidCredentials = "Неверный логин или пароль"

var (
	ErrMissingFields      = errors.New("login, password and deviceId are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrLoginTaken         = errors.New("login already exists")
	ErrInvalidRole        = errors.New("role must be admin or user")
	ErrInvalidExtend      = errors.New("exactly one of months (1-120), permanent or expiresAt is required")
	ErrInvalidCleanupMode = errors.New("mode must be deactivate or delete")
	ErrSelfSession        = errors.New("cannot delete the session used by this request")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)

// PolicyError - отказ политики доступа (403 или 410). Статус и сообщение отдаются клиенту как есть.
type PolicyError struct {
	Decision policy.Decision
}

func (e *PolicyError) Error() string { return e.Decision.Message }

func (e *PolicyError) Status() int { return e.Decision.Status }

// AsPolicyError достаёт PolicyError из цепочки ошибок.
func AsPolicyError(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
