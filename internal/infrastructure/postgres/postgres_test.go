package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/places/internal/config"
)

func TestRunMigrationsRequiresDatabase(t *testing.T) {
	assert.ErrorIs(t, RunMigrations(&config.Config{}, MigrateUp, nil), ErrNoDatabase)
	assert.ErrorIs(t, RunMigrations(nil, MigrateUp, nil), ErrNoDatabase)
}

func TestNewPoolRequiresURL(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoDatabase)

	_, err = NewPool(context.Background(), config.DatabaseConfig{URL: "postgres://localhost:notaport/db"}, nil)
	assert.Error(t, err)
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://assets/migrations", SourceURL("assets/migrations"))
}
