package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens a private in-memory sqlite database with the inventory schema.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(sqlite.Open("file::memory:"),
		&config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1},
		WithLogger(logger.NewGormLogger(zaptest.NewLogger(t), gormlogger.Warn)),
	)
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// newMockDB creates a GORM postgres dialector over go-sqlmock for SQL shape tests
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func newOil(t *testing.T, full int) *inventory.ProductStock {
	t.Helper()
	p, err := inventory.NewProductStock("Lavender oil", "ml", decimal.NewFromInt(100), full)
	require.NoError(t, err)
	return p
}

func newSupply(t *testing.T, onHand int64) *inventory.ProductStock {
	t.Helper()
	p, err := inventory.NewUntrackedProductStock("Cotton pads", "pcs", decimal.NewFromInt(onHand))
	require.NoError(t, err)
	return p
}
