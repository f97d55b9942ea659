package model

import "time"

type ActionKind string

const (
	ActionCreateUser     ActionKind = "create_user"
	ActionResetDevice    ActionKind = "reset_device"
	ActionDeleteUser     ActionKind = "delete_user"
	ActionExtendUser     ActionKind = "extend_user"
	ActionDeleteSession  ActionKind = "delete_session"
	ActionCleanupExpired ActionKind = "cleanup_expired"
)

// AdminAction - запись журнала действий администратора.
// AdminUserID nil у плановой очистки; TargetUserID обнуляется при удалении пользователя.
type AdminAction struct {
	ID           int64      `json:"id"`
	AdminUserID  *int64     `json:"adminUserId"`
	Action       ActionKind `json:"action"`
	TargetUserID *int64     `json:"targetUserId"`
	Notes        *string    `json:"notes"`
	CreatedAt    time.Time  `json:"createdAt"`
}
