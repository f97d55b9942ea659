// Package maintenance запускает плановую обработку аккаунтов с истёкшим сроком.
package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
)

const (
	defaultSchedule = "@hourly"
	runTimeout      = 5 * time.Minute
)

// Sweeper - операция очистки (service.AdminService).
type Sweeper interface {
	CleanupExpired(ctx context.Context, actorID *int64, mode service.CleanupMode) (*service.CleanupResult, error)
}

// Cleaner по расписанию вызывает CleanupExpired без администратора (actor NULL в журнале).
type Cleaner struct {
	sweeper  Sweeper
	cron     *cron.Cron
	schedule string
	mode     service.CleanupMode
	timeout  time.Duration
}

type Option func(*Cleaner)

// WithCron подставляет готовый планировщик (для тестов).
func WithCron(c *cron.Cron) Option {
	return func(cl *Cleaner) {
		if c != nil {
			cl.cron = c
		}
	}
}

// WithSchedule задаёт cron-выражение. Пустая строка оставляет значение по умолчанию.
func WithSchedule(spec string) Option {
	return func(cl *Cleaner) {
		if spec != "" {
			cl.schedule = spec
		}
	}
}

func WithMode(mode service.CleanupMode) Option {
	return func(cl *Cleaner) {
		if mode != "" {
			cl.mode = mode
		}
	}
}

func NewCleaner(sweeper Sweeper, opts ...Option) *Cleaner {
	cl := &Cleaner{
		sweeper:  sweeper,
		schedule: defaultSchedule,
		mode:     service.CleanupDeactivate,
		timeout:  runTimeout,
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.cron == nil {
		cl.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cl
}

// Start регистрирует задачу и запускает планировщик.
func (c *Cleaner) Start() error {
	if c.sweeper == nil {
		return errors.New("maintenance: sweeper is required")
	}
	if !c.mode.Valid() {
		return service.ErrInvalidCleanupMode
	}
	if _, err := c.cron.AddFunc(c.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.RunOnce(ctx); err != nil {
			logger.L().Warn("expired cleanup failed", zap.String("mode", string(c.mode)), zap.Error(err))
		}
	}); err != nil {
		return err
	}
	c.cron.Start()
	logger.Infof("maintenance: expired cleanup scheduled %q mode=%s", c.schedule, c.mode)
	return nil
}

// Stop останавливает планировщик; контекст завершается, когда идущая задача закончится.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce выполняет очистку один раз.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error
	res, err := c.sweeper.CleanupExpired(ctx, nil, c.mode)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if res.Users > 0 || res.Sessions > 0 {
		logger.Infof("maintenance: expired cleanup mode=%s users=%d sessions=%d", res.Mode, res.Users, res.Sessions)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		errs = multierr.Append(errs, ctxErr)
	}
	return errs
}
