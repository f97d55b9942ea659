package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"

	"github.com/ruslan20200/ios-messages-generator/internal/auth"
	"github.com/ruslan20200/ios-messages-generator/internal/config"
	"github.com/ruslan20200/ios-messages-generator/internal/logger"
	"github.com/ruslan20200/ios-messages-generator/internal/maintenance"
	"github.com/ruslan20200/ios-messages-generator/internal/repository"
	"github.com/ruslan20200/ios-messages-generator/internal/service"
	"github.com/ruslan20200/ios-messages-generator/internal/startup"
	"github.com/ruslan20200/ios-messages-generator/internal/storage"
	"github.com/ruslan20200/ios-messages-generator/internal/storage/memory"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory login limiter")
	flag.Parse()

	if err := logger.Init(""); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.SetPrefix("api")

	if err := run(*dev, *migrateOnly); err != nil {
		logger.Errorf("api: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(dev, migrateOnly bool) error {
	logger.Info("starting API service")
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error

	if dev {
		embedded := startup.EmbeddedConfig{
			Port:     5432,
			DataDir:  filepath.Join(".", ".pgdata"),
			User:     "onay",
			Password: "onay_secret",
			Database: "onay",
		}
		pg, err := startup.StartEmbeddedPostgres(embedded)
		if err != nil {
			return err
		}
		closers = append(closers, stopEmbedded(pg))
		cfg.Database.URL = embedded.DSN()
	}
	defer func() {
		if err := closeAll(closers); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return err
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2
	pool, err := startup.ConnectDBWithRetry(ctx, poolCfg, 60*time.Second)
	if err != nil {
		return err
	}
	closers = append(closers, func() error { pool.Close(); return nil })

	if err := startup.Migrate(cfg.DatabaseURL(), "up"); err != nil {
		return err
	}
	if migrateOnly {
		return nil
	}
	logger.Info("database connected, migrations applied")

	attempts, err := attemptStore(ctx, cfg, dev)
	if err != nil {
		return err
	}
	closers = append(closers, attempts.Close)

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	actionRepo := repository.NewActionRepository(pool)
	authSvc := service.NewAuthService(userRepo, sessionRepo, hasher, tokens)
	adminSvc := service.NewAdminService(userRepo, sessionRepo, actionRepo, hasher)

	if created, err := adminSvc.EnsureBootstrapAdmin(ctx, cfg.Bootstrap.AdminLogin, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	} else if created {
		logger.Infof("bootstrap admin %q created", cfg.Bootstrap.AdminLogin)
	}

	var cleaner *maintenance.Cleaner
	if cfg.Cleanup.Schedule != "" {
		cleaner = maintenance.NewCleaner(adminSvc,
			maintenance.WithSchedule(cfg.Cleanup.Schedule),
			maintenance.WithMode(service.CleanupMode(cfg.Cleanup.Mode)))
		if err := cleaner.Start(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      newRouter(cfg, authSvc, adminSvc, attempts),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	if cleaner != nil {
		<-cleaner.Stop().Done()
		logger.Info("maintenance stopped")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = multierr.Append(serveErr, err)
	}
	srvWg.Wait()
	logger.Info("server stopped")
	return serveErr
}

// attemptStore - Redis, если задан REDIS_URL (общий счётчик для нескольких экземпляров), иначе память процесса.
func attemptStore(ctx context.Context, cfg *config.Config, dev bool) (storage.AttemptStore, error) {
	if dev || cfg.Redis.URL == "" {
		if cfg.Env == "production" {
			logger.Warnf("REDIS_URL is empty: login attempts are counted per process")
		}
		return memory.New(), nil
	}
	return startup.ConnectRedisWithRetry(ctx, cfg.Redis.URL, 30*time.Second)
}

func stopEmbedded(pg *embeddedpostgres.EmbeddedPostgres) func() error {
	return func() error {
		logger.Info("stopping embedded postgres...")
		return pg.Stop()
	}
}

// closeAll закрывает ресурсы в обратном порядке и собирает все ошибки.
func closeAll(closers []func() error) error {
	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, closers[i]())
	}
	return errs
}
