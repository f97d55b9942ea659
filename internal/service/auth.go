package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/auth"
	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/metrics"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
	"github.com/ruslan20200/ios-messages-generator/internal/policy"
	"github.com/ruslan20200/ios-messages-generator/internal/repository"
)

// maxBindAttempts - сколько раз пробовать привязку, если между записью и перечитыванием
// администратор успел сбросить устройство.
const maxBindAttempts = 2

type AuthService struct {
	users    UserStore
	sessions SessionStore
	hasher   *auth.Hasher
	tokens   *auth.TokenService
	now      func() time.Time

	// dummyHash сверяется с паролем для неизвестного логина, чтобы время ответа не выдавало,
	// существует ли аккаунт.
	dummyHash string
}

func NewAuthService(users UserStore, sessions SessionStore, hasher *auth.Hasher, tokens *auth.TokenService) *AuthService {
	s := &AuthService{users: users, sessions: sessions, hasher: hasher, tokens: tokens, now: time.Now}
	if h, err := hasher.Hash("dummy-password-for-timing"); err == nil {
		s.dummyHash = h
	}
	return s
}

// WithClock подменяет часы (для тестов).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

type LoginRequest struct {
	Login     string
	Password  string
	DeviceID  string
	IP        string
	UserAgent string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
	SessionID int64
}

// Identity - проверенный владелец запроса. DeviceID - устройство из токена для администратора
// и привязанное устройство для остальных.
type Identity struct {
	UserID    int64
	Role      model.Role
	DeviceID  string
	SessionID int64
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	login := model.NormalizeLogin(req.Login)
	deviceID := strings.TrimSpace(req.DeviceID)
	if login == "" || req.Password == "" || deviceID == "" {
		return nil, ErrMissingFields
	}

	u, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Verify(req.Password, s.dummyHash)
		metrics.LoginAttempts.WithLabelValues(metrics.LoginInvalidCredentials).Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginInvalidCredentials).Inc()
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	d := policy.EvaluateAccess(u.DeviceID, deviceID, u.Role, u.ExpiresAt, now)
	if !d.OK {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginResultForStatus(d.Status)).Inc()
		return nil, &PolicyError{Decision: d}
	}
	if d.ShouldBindDevice {
		if err := s.bindDevice(ctx, u, deviceID); err != nil {
			if pe, ok := AsPolicyError(err); ok {
				metrics.LoginAttempts.WithLabelValues(metrics.LoginResultForStatus(pe.Status())).Inc()
			} else {
				metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
			}
			return nil, err
		}
	}

	sess := &model.Session{
		UserID:    u.ID,
		DeviceID:  deviceID,
		IP:        optional(req.IP),
		UserAgent: optional(req.UserAgent),
		LoginTime: now,
	}
	sessionID, err := s.sessions.Create(ctx, sess)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, exp, err := s.tokens.Issue(u.ID, u.Role, deviceID, sessionID)
	if err != nil {
		// Сессия без токена никому не нужна.
		if derr := s.sessions.Deactivate(ctx, sessionID, now); derr != nil {
			logger.Errorf("login: deactivate orphan session %d: %v", sessionID, derr)
		}
		metrics.LoginAttempts.WithLabelValues(metrics.LoginError).Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues(metrics.LoginOK).Inc()
	logger.Infof("login ok user_id=%d session_id=%d role=%s", u.ID, sessionID, u.Role)
	return &LoginResult{Token: token, ExpiresAt: exp, User: u, SessionID: sessionID}, nil
}

// bindDevice привязывает устройство условной записью (только если device_id ещё NULL).
// Если запись не прошла, кто-то успел раньше: перечитываем и сравниваем.
func (s *AuthService) bindDevice(ctx context.Context, u *model.User, deviceID string) error {
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		ok, err := s.users.BindDeviceIfUnset(ctx, u.ID, deviceID)
		if err != nil {
			return fmt.Errorf("bind device: %w", err)
		}
		if ok {
			u.DeviceID = &deviceID
			return nil
		}
		cur, err := s.users.GetByID(ctx, u.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("bind device reread: %w", err)
		}
		if cur.DeviceID == nil {
			continue
		}
		if *cur.DeviceID != deviceID {
			logger.Infof("login: device race lost user_id=%d", u.ID)
			return &PolicyError{Decision: policy.Decision{Status: http.StatusForbidden, Message: policy.MsgDeviceInUse}}
		}
		u.DeviceID = cur.DeviceID
		return nil
	}
	return &PolicyError{Decision: policy.Decision{Status: http.StatusForbidden, Message: policy.MsgDeviceInUse}}
}

// Authenticate проверяет токен и перечитывает сессию и владельца. Роль и устройство
// из токена не используются для решения: токен лишь указывает, какую сессию проверять.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		metrics.AuthRejections.WithLabelValues("token").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	a, err := s.sessions.FindForAuth(ctx, claims.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.AuthRejections.WithLabelValues("session").Inc()
		return nil, fmt.Errorf("%w: session not found", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if a.UserID != claims.UserID {
		metrics.AuthRejections.WithLabelValues("session").Inc()
		return nil, fmt.Errorf("%w: session belongs to another user", ErrUnauthorized)
	}
	if !a.IsActive {
		metrics.AuthRejections.WithLabelValues("inactive").Inc()
		return nil, fmt.Errorf("%w: session inactive", ErrUnauthorized)
	}

	now := s.now()
	d := policy.EvaluateAccess(a.DeviceID, claims.DeviceID, a.Role, a.ExpiresAt, now)
	if !d.OK {
		metrics.AuthRejections.WithLabelValues(metrics.LoginResultForStatus(d.Status)).Inc()
		return nil, &PolicyError{Decision: d}
	}

	if err := s.sessions.Touch(ctx, a.SessionID, now); err != nil {
		logger.Errorf("authenticate: touch session_id=%d: %v", a.SessionID, err)
	}

	id := &Identity{UserID: a.UserID, Role: a.Role, DeviceID: claims.DeviceID, SessionID: a.SessionID}
	if !policy.Capabilities(a.Role).Has(policy.CapAnyDevice) && a.DeviceID != nil && *a.DeviceID != "" {
		id.DeviceID = *a.DeviceID
	}
	return id, nil
}

// Logout завершает сессию. Уже завершённая сессия - не ошибка.
func (s *AuthService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessions.Deactivate(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// CurrentUser перечитывает пользователя для ответа /api/auth/me.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
