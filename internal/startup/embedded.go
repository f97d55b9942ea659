package startup

import (
	"fmt"
	"os"
	"path/filepath"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/ruslan20200/ios-messages-generator/internal/logger"
)

// EmbeddedConfig - параметры встроенного Postgres для -dev и интеграционных тестов.
type EmbeddedConfig struct {
	Port     uint32
	DataDir  string
	User     string
	Password string
	Database string
}

func (c EmbeddedConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", c.User, c.Password, c.Port, c.Database)
}

// StartEmbeddedPostgres поднимает встроенный Postgres. Остановить - через Stop у результата.
func StartEmbeddedPostgres(c EmbeddedConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create pgdata dir: %w", err)
		}
	}
	pgCfg := embeddedpostgres.DefaultConfig().
		Port(c.Port).
		Username(c.User).
		Password(c.Password).
		Database(c.Database).
		RuntimePath(filepath.Join(os.TempDir(), fmt.Sprintf("embedded-pg-runtime-%d", c.Port)))
	if c.DataDir != "" {
		pgCfg = pgCfg.DataPath(c.DataDir)
	}
	db := embeddedpostgres.NewDatabase(pgCfg)
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("embedded postgres start: %w", err)
	}
	logger.Infof("embedded PostgreSQL running on port %d", c.Port)
	return db, nil
}
