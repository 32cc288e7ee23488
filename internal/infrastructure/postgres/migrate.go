package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/fastygo/places/internal/config"
)

// ErrNoDatabase is returned when DATABASE_URL is not configured.
var ErrNoDatabase = errors.New("postgres: DATABASE_URL is not set")

// MigrationDirection selects RunMigrations behaviour.
type MigrationDirection string

const (
	MigrateUp   MigrationDirection = "up"
	MigrateDown MigrationDirection = "down"
)

// RunMigrations applies (or rolls back) the schema in cfg.Migrations.Path.
func RunMigrations(cfg *config.Config, direction MigrationDirection, logger *zap.Logger) error {
	if cfg == nil || cfg.Database.URL == "" {
		return ErrNoDatabase
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(SourceURL(cfg.Migrations.Path), "postgres", driver)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case MigrateDown:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	logger.Info("database migrations applied", zap.String("direction", string(direction)))
	return nil
}

// SourceURL turns a migrations directory into a migrate file source URL.
func SourceURL(path string) string {
	return fmt.Sprintf("file://%s", filepath.ToSlash(path))
}
