// Package policy решает, можно ли пользователю войти или продолжить сессию
// с данного устройства, исходя из роли, привязки устройства и срока действия аккаунта.
package policy

import (
	"net/http"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

const (
	MsgAccountExpired = "Срок действия аккаунта истек"
	MsgDeviceInUse    = "Этот аккаунт уже используется на другом устройстве"
)

// Capability - набор прав роли. Роль переводится в набор один раз, в Capabilities.
type Capability uint8

const (
	// CapAnyDevice - привязка к устройству не проверяется.
	CapAnyDevice Capability = 1 << iota
	// CapManageUsers - доступ к административным операциям.
	CapManageUsers
)

func (c Capability) Has(flag Capability) bool { return c&flag != 0 }

// Capabilities возвращает набор прав роли. Неизвестная роль прав не имеет.
func Capabilities(role model.Role) Capability {
	switch role {
	case model.RoleAdmin:
		return CapAnyDevice | CapManageUsers
	default:
		return 0
	}
}

// Decision - результат проверки доступа.
type Decision struct {
	OK               bool
	ShouldBindDevice bool
	Status           int
	Message          string
}

// EvaluateAccess проверяет доступ в строгом порядке: срок действия, права роли,
// отсутствие привязки, совпадение устройства. Функция чистая.
func EvaluateAccess(userDeviceID *string, requestDeviceID string, role model.Role, expiresAt *time.Time, now time.Time) Decision {
	if expiresAt != nil && !expiresAt.After(now) {
		return Decision{Status: http.StatusGone, Message: MsgAccountExpired}
	}
	if Capabilities(role).Has(CapAnyDevice) {
		return Decision{OK: true, Status: http.StatusOK}
	}
	if userDeviceID == nil || *userDeviceID == "" {
		return Decision{OK: true, ShouldBindDevice: true, Status: http.StatusOK}
	}
	if *userDeviceID == requestDeviceID {
		return Decision{OK: true, Status: http.StatusOK}
	}
	return Decision{Status: http.StatusForbidden, Message: MsgDeviceInUse}
}
