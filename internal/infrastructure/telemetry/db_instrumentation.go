package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls GORM instrumentation.
type DBConfig struct {
	TracingEnabled     bool
	MetricsEnabled     bool
	LogFullSQL         bool          // include query variables in spans; development only
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
	DBSystem           string        // default "postgresql"
}

// DefaultDBConfig returns instrumentation defaults with everything off.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
		DBSystem:           "postgresql",
	}
}

// DBInstrumentation is a GORM plugin recording query counts, latency and slow
// queries, and optionally registering otelgorm for per-query spans.
type DBInstrumentation struct {
	config DBConfig
	logger *zap.Logger

	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	sqlDB    *sql.DB
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type queryStartKey struct{}

// NewDBInstrumentation creates the database instruments on meter.
func NewDBInstrumentation(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultDBConfig()
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaults.SlowQueryThreshold
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = defaults.PoolStatsInterval
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = defaults.DBSystem
	}

	d := &DBInstrumentation{config: cfg, logger: logger, stopCh: make(chan struct{})}

	var err error
	if d.queryTotal, err = NewCounter(meter, "db_query_total",
		"Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Queries slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}
	if d.poolConnections, err = NewGauge(meter, "db_pool_connections",
		"Connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if d.poolConnectionsMax, err = NewGauge(meter, "db_pool_connections_max",
		"Maximum open connections", "{connection}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Name implements gorm.Plugin.
func (d *DBInstrumentation) Name() string {
	return "clinic:db_instrumentation"
}

// Initialize implements gorm.Plugin.
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	if d.config.TracingEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.config.DBSystem)}
		if !d.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	type hook struct {
		name   string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("clinic_db:before_"+h.name, d.before); err != nil {
			return err
		}
		op := h.name
		if err := h.after("clinic_db:after_"+h.name, func(tx *gorm.DB) { d.after(tx, op) }); err != nil {
			return err
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		d.sqlDB = sqlDB
	}

	d.logger.Info("Database instrumentation registered",
		zap.Bool("tracing", d.config.TracingEnabled),
		zap.Bool("log_full_sql", d.config.LogFullSQL),
		zap.Duration("slow_query_threshold", d.config.SlowQueryThreshold),
	)
	return nil
}

func (d *DBInstrumentation) before(tx *gorm.DB) {
	if tx.Statement.Context != nil {
		tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (d *DBInstrumentation) after(tx *gorm.DB, callback string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	operation := operationOf(tx.Statement.SQL.String(), callback)
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}

	if d.config.MetricsEnabled {
		d.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
		d.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int64("db.rows_affected", tx.Statement.RowsAffected),
			attribute.String("db.sql.table", table),
		)
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			RecordError(span, tx.Error)
		}
	}

	if elapsed <= d.config.SlowQueryThreshold {
		return
	}
	if d.config.MetricsEnabled {
		d.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
	if span.IsRecording() {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		AddEvent(span, "slow_query_warning",
			"duration_ms", elapsed.Milliseconds(),
			"threshold_ms", d.config.SlowQueryThreshold.Milliseconds(),
		)
	}
	d.logger.Warn("slow query",
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Duration("elapsed", elapsed),
	)
}

// StartPoolStatsCollection records connection pool gauges until Stop or ctx ends.
func (d *DBInstrumentation) StartPoolStatsCollection(ctx context.Context) {
	if d.sqlDB == nil || !d.config.MetricsEnabled {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.config.PoolStatsInterval)
		defer ticker.Stop()

		d.collectPoolStats(ctx)
		for {
			select {
			case <-ticker.C:
				d.collectPoolStats(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *DBInstrumentation) collectPoolStats(ctx context.Context) {
	stats := d.sqlDB.Stats()
	d.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	d.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	d.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	d.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call more than once.
func (d *DBInstrumentation) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
	})
}

// operationOf names a query by its leading SQL keyword, falling back to the GORM callback
func operationOf(sqlText, callback string) string {
	fields := strings.Fields(sqlText)
	if len(fields) > 0 {
		switch kw := strings.ToUpper(fields[0]); kw {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return kw
		}
	}
	return strings.ToUpper(callback)
}
