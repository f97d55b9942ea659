package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrLoginTaken = errors.New("login already taken")
)

const pgUniqueViolation = "23505"

const userCols = `id, login, password_hash, role, device_id, expires_at, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// scanUser сканирует строку в model.User (порядок соответствует userCols).
func scanUser(s pgx.Row, u *model.User) error {
	return s.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role, &u.DeviceID, &u.ExpiresAt, &u.CreatedAt)
}

// Create вставляет пользователя и заполняет ID и CreatedAt. Логин должен быть уже нормализован.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, role, device_id, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		u.Login, u.PasswordHash, u.Role, u.DeviceID, u.ExpiresAt,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrLoginTaken
		}
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id), u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByLogin", time.Now())()
	u := &model.User{}
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE login = $1`, login), u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByLogin: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.List", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.List rows: %w", err)
	}
	return users, nil
}

// BindDeviceIfUnset записывает устройство, только если оно ещё не привязано.
// false - строку изменить не удалось (привязку успел сделать другой вход или пользователя нет).
func (r *UserRepository) BindDeviceIfUnset(ctx context.Context, userID int64, deviceID string) (bool, error) {
	defer logger.DeferLogDuration("user.BindDeviceIfUnset", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET device_id = $2 WHERE id = $1 AND device_id IS NULL`, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("userRepo.BindDeviceIfUnset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearDevice снимает привязку. ErrNotFound - пользователя нет.
func (r *UserRepository) ClearDevice(ctx context.Context, userID int64) error {
	defer logger.DeferLogDuration("user.ClearDevice", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE users SET device_id = NULL WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("userRepo.ClearDevice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetExpiry задаёт срок действия; nil - бессрочно.
func (r *UserRepository) SetExpiry(ctx context.Context, userID int64, expiresAt *time.Time) error {
	defer logger.DeferLogDuration("user.SetExpiry", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE users SET expires_at = $2 WHERE id = $1`, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("userRepo.SetExpiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountExpired - число пользователей с expires_at <= now.
func (r *UserRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	defer logger.DeferLogDuration("user.CountExpired", time.Now())()
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE expires_at IS NOT NULL AND expires_at <= $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("userRepo.CountExpired: %w", err)
	}
	return n, nil
}

// Delete удаляет пользователя (сессии удаляются каскадом). Перед удалением в записях журнала,
// где он цель или автор, id дописывается в notes: внешние ключи обнулятся через ON DELETE SET NULL.
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	defer logger.DeferLogDuration("user.Delete", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("userRepo.Delete begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := preserveActionRefs(ctx, tx, []int64{userID}); err != nil {
		return fmt.Errorf("userRepo.Delete: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("userRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("userRepo.Delete commit: %w", err)
	}
	return nil
}

// DeleteExpired удаляет всех пользователей с истёкшим сроком.
// Возвращает число удалённых пользователей и их сессий.
func (r *UserRepository) DeleteExpired(ctx context.Context, now time.Time) (users, sessions int64, err error) {
	defer logger.DeferLogDuration("user.DeleteExpired", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id FROM users WHERE expires_at IS NOT NULL AND expires_at <= $1 FOR UPDATE`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired select: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired collect: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ANY($1)`, ids).Scan(&sessions); err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired count sessions: %w", err)
	}
	if err := preserveActionRefs(ctx, tx, ids); err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("userRepo.DeleteExpired commit: %w", err)
	}
	return tag.RowsAffected(), sessions, nil
}

// preserveActionRefs дописывает deleted_user_id / deleted_admin_id в notes записей журнала,
// ссылающихся на удаляемых пользователей.
func preserveActionRefs(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if _, err := tx.Exec(ctx,
		`UPDATE admin_actions
		 SET notes = concat_ws('; ', NULLIF(notes, ''), 'deleted_user_id=' || target_user_id::text)
		 WHERE target_user_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("preserve target refs: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE admin_actions
		 SET notes = concat_ws('; ', NULLIF(notes, ''), 'deleted_admin_id=' || admin_user_id::text)
		 WHERE admin_user_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("preserve admin refs: %w", err)
	}
	return nil
}

// DeletedUserNote - пометка об удалённом пользователе в notes журнала.
func DeletedUserNote(userID int64) string {
	return "deleted_user_id=" + strconv.FormatInt(userID, 10)
}
