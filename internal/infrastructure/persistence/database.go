// Package persistence implements the inventory repositories on GORM.
package persistence

import (
	"fmt"
	"time"

	"github.com/clinic/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// Option customizes how the connection is opened
type Option func(*options)

type options struct {
	logger  gormlogger.Interface
	plugins []gorm.Plugin
}

// WithLogger routes GORM logging to the given logger
func WithLogger(l gormlogger.Interface) Option {
	return func(o *options) { o.logger = l }
}

// WithPlugins registers GORM plugins such as DB instrumentation
func WithPlugins(plugins ...gorm.Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// NewDatabase opens a postgres connection pool and verifies it with a ping
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts...)
}

// Open creates a Database over any GORM dialector. Pool limits from cfg are
// applied when cfg is non-nil.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := &options{logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	for _, opt := range opts {
		opt(o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range o.plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("failed to register plugin %s: %w", p.Name(), err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg != nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// LogPoolStats writes the connection pool statistics at debug level
func (d *Database) LogPoolStats(logger *zap.Logger) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	logger.Debug("database pool",
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}
