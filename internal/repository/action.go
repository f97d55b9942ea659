package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

// ActionRepository - журнал действий администраторов (admin_actions).
type ActionRepository struct {
	pool *pgxpool.Pool
}

func NewActionRepository(pool *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{pool: pool}
}

func (r *ActionRepository) Record(ctx context.Context, a *model.AdminAction) error {
	defer logger.DeferLogDuration("action.Record", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admin_actions (admin_user_id, action, target_user_id, notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.AdminUserID, a.Action, a.TargetUserID, a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("actionRepo.Record: %w", err)
	}
	return nil
}

// List возвращает последние записи журнала.
func (r *ActionRepository) List(ctx context.Context, limit int) ([]model.AdminAction, error) {
	defer logger.DeferLogDuration("action.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, admin_user_id, action, target_user_id, notes, created_at
		 FROM admin_actions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("actionRepo.List: %w", err)
	}
	defer rows.Close()
	list := make([]model.AdminAction, 0)
	for rows.Next() {
		var a model.AdminAction
		if err := rows.Scan(&a.ID, &a.AdminUserID, &a.Action, &a.TargetUserID, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("actionRepo.List scan: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
