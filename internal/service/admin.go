package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/auth"
	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/metrics"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
	"github.com/ruslan20200/ios-messages-generator/internal/repository"
)

const maxExtendMonths = 120

type CleanupMode string

const (
	CleanupDeactivate CleanupMode = "deactivate"
	CleanupDelete     CleanupMode = "delete"
)

func (m CleanupMode) Valid() bool { return m == CleanupDeactivate || m == CleanupDelete }

type CreateUserInput struct {
	Login     string
	Password  string
	Role      model.Role
	ExpiresAt *time.Time
}

// ExtendInput - ровно один из режимов: Months, Permanent или ExpiresAt.
type ExtendInput struct {
	Months    *int
	Permanent bool
	ExpiresAt *time.Time
}

type CleanupResult struct {
	Mode     CleanupMode `json:"mode"`
	Users    int64       `json:"users"`
	Sessions int64       `json:"sessions"`
}

// AdminService - административные операции над пользователями и сессиями.
// Каждое успешное изменение пишется в журнал; сбой журнала операцию не отменяет.
type AdminService struct {
	users    UserStore
	sessions SessionStore
	actions  ActionLog
	hasher   *auth.Hasher
	now      func() time.Time
}

func NewAdminService(users UserStore, sessions SessionStore, actions ActionLog, hasher *auth.Hasher) *AdminService {
	return &AdminService{users: users, sessions: sessions, actions: actions, hasher: hasher, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

func (s *AdminService) CreateUser(ctx context.Context, actorID int64, in CreateUserInput) (*model.User, error) {
	u, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &actorID, model.ActionCreateUser, &u.ID, fmt.Sprintf("login=%s role=%s", u.Login, u.Role))
	return u, nil
}

func (s *AdminService) createUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	login := model.NormalizeLogin(in.Login)
	if login == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Login: login, PasswordHash: hash, Role: role}
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		u.ExpiresAt = &t
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrLoginTaken) {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureBootstrapAdmin создаёт администратора при старте, если пользователя с таким логином нет.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, login, password string) (bool, error) {
	if model.NormalizeLogin(login) == "" || password == "" {
		return false, nil
	}
	_, err := s.users.GetByLogin(ctx, model.NormalizeLogin(login))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("bootstrap admin lookup: %w", err)
	}
	u, err := s.createUser(ctx, CreateUserInput{Login: login, Password: password, Role: model.RoleAdmin})
	if errors.Is(err, ErrLoginTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.record(ctx, nil, model.ActionCreateUser, &u.ID, "bootstrap admin login="+u.Login)
	return true, nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

// ResetDevice снимает привязку устройства и завершает все активные сессии пользователя,
// чтобы старое устройство не продолжало работать по ещё действующему токену.
func (s *AdminService) ResetDevice(ctx context.Context, actorID, userID int64) (int64, error) {
	if err := s.users.ClearDevice(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("reset device: %w", err)
	}
	n, err := s.sessions.DeactivateByUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("reset device sessions: %w", err)
	}
	s.record(ctx, &actorID, model.ActionResetDevice, &userID, fmt.Sprintf("sessions_deactivated=%d", n))
	return n, nil
}

// ExtendExpiry продлевает доступ. В режиме месяцев отсчёт идёт от max(текущий срок, сейчас):
// просроченный аккаунт продлевается от сегодняшнего дня, а не от старой даты.
func (s *AdminService) ExtendExpiry(ctx context.Context, actorID, userID int64, in ExtendInput) (*model.User, error) {
	modes := 0
	if in.Months != nil {
		modes++
	}
	if in.Permanent {
		modes++
	}
	if in.ExpiresAt != nil {
		modes++
	}
	if modes != 1 || (in.Months != nil && (*in.Months < 1 || *in.Months > maxExtendMonths)) {
		return nil, ErrInvalidExtend
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("extend: %w", err)
	}

	now := s.now()
	var next *time.Time
	var note string
	switch {
	case in.Months != nil:
		base := now
		if u.ExpiresAt != nil && u.ExpiresAt.After(now) {
			base = *u.ExpiresAt
		}
		t := base.AddDate(0, *in.Months, 0).UTC()
		next = &t
		note = fmt.Sprintf("months=%d expires_at=%s", *in.Months, t.Format(time.RFC3339))
	case in.Permanent:
		note = "permanent"
	default:
		t := in.ExpiresAt.UTC()
		next = &t
		note = "expires_at=" + t.Format(time.RFC3339)
	}

	if err := s.users.SetExpiry(ctx, userID, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("extend: %w", err)
	}
	u.ExpiresAt = next
	s.record(ctx, &actorID, model.ActionExtendUser, &userID, note)
	return u, nil
}

// DeleteUser удаляет пользователя вместе с сессиями. Запись журнала хранит id в notes,
// так как строки пользователя больше нет.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return ErrSelfDelete
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.record(ctx, &actorID, model.ActionDeleteUser, nil, repository.DeletedUserNote(userID)+" login="+u.Login)
	return nil
}

func (s *AdminService) ListSessions(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error) {
	list, err := s.sessions.List(ctx, activeOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// DeleteSession удаляет строку сессии. Сессию, которой подписан текущий запрос, удалить нельзя.
func (s *AdminService) DeleteSession(ctx context.Context, actorID, currentSessionID, sessionID int64) error {
	if sessionID == currentSessionID {
		return ErrSelfSession
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	ok, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	s.record(ctx, &actorID, model.ActionDeleteSession, &sess.UserID, fmt.Sprintf("session_id=%d", sessionID))
	return nil
}

// CleanupExpired обрабатывает всех пользователей с истёкшим сроком. deactivate завершает их
// сессии и оставляет строки; delete удаляет пользователей (сессии каскадом).
// actorID nil - плановый запуск.
func (s *AdminService) CleanupExpired(ctx context.Context, actorID *int64, mode CleanupMode) (*CleanupResult, error) {
	if !mode.Valid() {
		return nil, ErrInvalidCleanupMode
	}
	now := s.now()
	res := &CleanupResult{Mode: mode}
	var err error
	switch mode {
	case CleanupDeactivate:
		if res.Users, err = s.users.CountExpired(ctx, now); err != nil {
			return nil, fmt.Errorf("cleanup count: %w", err)
		}
		if res.Sessions, err = s.sessions.DeactivateForExpiredUsers(ctx, now); err != nil {
			return nil, fmt.Errorf("cleanup deactivate: %w", err)
		}
	case CleanupDelete:
		if res.Users, res.Sessions, err = s.users.DeleteExpired(ctx, now); err != nil {
			return nil, fmt.Errorf("cleanup delete: %w", err)
		}
	}
	metrics.CleanupSessions.WithLabelValues(string(mode)).Add(float64(res.Sessions))
	s.record(ctx, actorID, model.ActionCleanupExpired, nil,
		fmt.Sprintf("mode=%s users=%d sessions=%d", mode, res.Users, res.Sessions))
	return res, nil
}

func (s *AdminService) ListActions(ctx context.Context, limit int) ([]model.AdminAction, error) {
	list, err := s.actions.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return list, nil
}

// record пишет действие в журнал. Ошибка только логируется.
func (s *AdminService) record(ctx context.Context, actorID *int64, kind model.ActionKind, target *int64, note string) {
	metrics.AdminActions.WithLabelValues(string(kind)).Inc()
	a := &model.AdminAction{AdminUserID: actorID, Action: kind, TargetUserID: target}
	if note != "" {
		a.Notes = &note
	}
	if err := s.actions.Record(ctx, a); err != nil {
		logger.Warnf("admin action %s not recorded: %v", kind, err)
	}
}
