package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid сообщает, входит ли роль в допустимый набор.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           int64      `json:"id"`
	Login        string     `json:"login"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	DeviceID     *string    `json:"deviceId"`  // nil - устройство ещё не привязано
	ExpiresAt    *time.Time `json:"expiresAt"` // nil - бессрочный доступ
	CreatedAt    time.Time  `json:"createdAt"`
}

// NormalizeLogin приводит логин к виду, в котором он хранится: без пробелов по краям, в нижнем регистре.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
