// Package migration applies and authors the SQL schema migrations of the
// products, units and movement ledger tables.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clinic/backend/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator handles database migrations using golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator reading migration files from a directory
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return newMigrator(m, logger), nil
}

// NewEmbedded creates a Migrator over the migrations compiled into the binary
func NewEmbedded(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return NewWithSource(db, "iofs", src, logger)
}

// NewWithSource creates a Migrator over an arbitrary source driver
func NewWithSource(db *sql.DB, sourceName string, src source.Driver, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance(sourceName, src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return newMigrator(m, logger), nil
}

func newMigrator(m *migrate.Migrate, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("migration")
	m.Log = &migrateLogger{sugar: logger.Sugar()}
	return &Migrator{migrate: m, logger: logger}
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Running migrations up")
	return m.finish("up", m.migrate.Up())
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Running migrations down")
	return m.finish("down", m.migrate.Down())
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Running migration steps", zap.Int("steps", n))
	return m.finish("steps", m.migrate.Steps(n))
}

// GoTo migrates to a specific version
func (m *Migrator) GoTo(version uint) error {
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))
	return m.finish(fmt.Sprintf("goto %d", version), m.migrate.Migrate(version))
}

// finish translates ErrNoChange and logs the resulting schema version
func (m *Migrator) finish(op string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply", zap.String("operation", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.String("operation", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version returns the current migration version, 0 when none was applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// It exists to recover from a dirty schema after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop drops every object in the database
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping database - all data will be lost")
	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	return nil
}

// Close closes the migrator and releases resources
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// migrateLogger routes golang-migrate progress lines to zap
type migrateLogger struct {
	sugar *zap.SugaredLogger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.sugar.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.sugar.Desugar().Core().Enabled(zap.DebugLevel)
}
