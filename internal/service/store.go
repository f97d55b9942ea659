package service

import (
	"context"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

// UserStore - хранилище пользователей. Реализация: repository.UserRepository.
// Отсутствие записи - repository.ErrNotFound, занятый логин - repository.ErrLoginTaken.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	BindDeviceIfUnset(ctx context.Context, userID int64, deviceID string) (bool, error)
	ClearDevice(ctx context.Context, userID int64) error
	SetExpiry(ctx context.Context, userID int64, expiresAt *time.Time) error
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (users, sessions int64, err error)
}

// SessionStore - хранилище сессий. Реализация: repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) (int64, error)
	FindForAuth(ctx context.Context, sessionID int64) (*model.SessionAuth, error)
	GetByID(ctx context.Context, sessionID int64) (*model.Session, error)
	Touch(ctx context.Context, sessionID int64, t time.Time) error
	Deactivate(ctx context.Context, sessionID int64, t time.Time) error
	DeactivateByUser(ctx context.Context, userID int64, t time.Time) (int64, error)
	DeactivateForExpiredUsers(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error)
	Delete(ctx context.Context, sessionID int64) (bool, error)
}

// ActionLog - журнал действий администраторов. Реализация: repository.ActionRepository.
type ActionLog interface {
	Record(ctx context.Context, a *model.AdminAction) error
	List(ctx context.Context, limit int) ([]model.AdminAction, error)
}
