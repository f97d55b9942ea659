package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create вставляет активную сессию и возвращает её id (он же записывается в s.ID).
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) (int64, error) {
	defer logger.DeferLogDuration("session.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, device_id, ip, user_agent, login_time, last_seen, is_active)
		 VALUES ($1, $2, $3, $4, $5, $5, TRUE)
		 RETURNING id`,
		s.UserID, s.DeviceID, s.IP, s.UserAgent, s.LoginTime,
	).Scan(&s.ID)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.Create: %w", err)
	}
	s.LastSeen = s.LoginTime
	s.IsActive = true
	return s.ID, nil
}

// FindForAuth читает сессию вместе с текущими ролью, устройством и сроком владельца.
func (r *SessionRepository) FindForAuth(ctx context.Context, sessionID int64) (*model.SessionAuth, error) {
	defer logger.DeferLogDuration("session.FindForAuth", time.Now())()
	a := &model.SessionAuth{}
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.is_active, u.role, u.device_id, u.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.id = $1`, sessionID,
	).Scan(&a.SessionID, &a.UserID, &a.IsActive, &a.Role, &a.DeviceID, &a.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.FindForAuth: %w", err)
	}
	return a, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetByID", time.Now())()
	s, err := scanSession(r.pool.QueryRow(ctx, sessionSelect+` WHERE s.id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return s, nil
}

// Touch обновляет last_seen активной сессии.
func (r *SessionRepository) Touch(ctx context.Context, sessionID int64, t time.Time) error {
	defer logger.DeferLogDuration("session.Touch", time.Now())()
	if _, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen = $2 WHERE id = $1 AND is_active`, sessionID, t); err != nil {
		return fmt.Errorf("sessionRepo.Touch: %w", err)
	}
	return nil
}

// Deactivate снимает флаг активности. Повторный вызов ошибкой не является.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID int64, t time.Time) error {
	defer logger.DeferLogDuration("session.Deactivate", time.Now())()
	if _, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE, last_seen = $2 WHERE id = $1 AND is_active`, sessionID, t); err != nil {
		return fmt.Errorf("sessionRepo.Deactivate: %w", err)
	}
	return nil
}

// DeactivateByUser завершает все активные сессии пользователя. Возвращает их число.
func (r *SessionRepository) DeactivateByUser(ctx context.Context, userID int64, t time.Time) (int64, error) {
	defer logger.DeferLogDuration("session.DeactivateByUser", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE, last_seen = $2 WHERE user_id = $1 AND is_active`, userID, t)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeactivateByUser: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateForExpiredUsers завершает активные сессии всех пользователей с истёкшим сроком.
func (r *SessionRepository) DeactivateForExpiredUsers(ctx context.Context, now time.Time) (int64, error) {
	defer logger.DeferLogDuration("session.DeactivateForExpiredUsers", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions s SET is_active = FALSE, last_seen = $1
		 FROM users u
		 WHERE s.user_id = u.id AND s.is_active
		   AND u.expires_at IS NOT NULL AND u.expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeactivateForExpiredUsers: %w", err)
	}
	return tag.RowsAffected(), nil
}

const sessionSelect = `SELECT s.id, s.user_id, u.login, s.device_id, s.ip, s.user_agent, s.login_time, s.last_seen, s.is_active
	FROM sessions s JOIN users u ON u.id = s.user_id`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.Login, &s.DeviceID, &s.IP, &s.UserAgent, &s.LoginTime, &s.LastSeen, &s.IsActive)
	return s, err
}

// List возвращает сессии (новые первыми) с логином владельца.
func (r *SessionRepository) List(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error) {
	defer logger.DeferLogDuration("session.List", time.Now())()
	q := sessionSelect
	if activeOnly {
		q += ` WHERE s.is_active`
	}
	q += ` ORDER BY s.login_time DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.List: %w", err)
	}
	defer rows.Close()
	list := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sessionRepo.List scan: %w", err)
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Delete удаляет строку сессии. false - такой сессии не было.
func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) (bool, error) {
	defer logger.DeferLogDuration("session.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("sessionRepo.Delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
