// Package integration runs the stock services against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/migration"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB starts a PostgreSQL container, applies the embedded migrations and
// returns a connection pool sized for concurrent writers.
func NewTestDB(t *testing.T) *persistence.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("clinic_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	log := zaptest.NewLogger(t)
	db, err := persistence.Open(gormpostgres.Open(dsn),
		&config.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 5},
		persistence.WithLogger(logger.NewGormLogger(log, gormlogger.Warn)),
	)
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.NewEmbedded(sqlDB, log)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")

	return db
}
