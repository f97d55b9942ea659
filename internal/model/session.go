package model

import "time"

type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Login     string    `json:"login,omitempty"`
	DeviceID  string    `json:"deviceId"`
	IP        *string   `json:"ip"`
	UserAgent *string   `json:"userAgent"`
	LoginTime time.Time `json:"loginTime"`
	LastSeen  time.Time `json:"lastSeen"`
	IsActive  bool      `json:"isActive"`
}

// SessionAuth - сессия вместе с текущим состоянием владельца (роль, устройство, срок).
// Читается на каждом запросе вместо данных из токена.
type SessionAuth struct {
	SessionID int64
	UserID    int64
	IsActive  bool
	Role      Role
	DeviceID  *string
	ExpiresAt *time.Time
}
