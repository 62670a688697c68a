package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockLevelProvider reports how many products sit at or below their reorder point
type StockLevelProvider interface {
	CountBelowReorderPoint(ctx context.Context) (int64, error)
}

// StockMetricsConfig holds configuration for stock metrics.
type StockMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	LevelProvider   StockLevelProvider
}

// StockMetrics records stock mutation counters and a periodic low-stock gauge.
type StockMetrics struct {
	logger *zap.Logger

	mutationsTotal        *Counter
	conflictsTotal        *Counter
	containersOpenedTotal *Counter
	oversoldTotal         *Counter
	movementsTotal        *Counter
	belowReorderProducts  *Gauge

	levelProvider   StockLevelProvider
	collectInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	collectOnce     sync.Once
}

// NewStockMetrics creates the stock instruments on cfg.Meter.
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = time.Minute
	}

	sm := &StockMetrics{
		logger:          logger,
		levelProvider:   cfg.LevelProvider,
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}

	var err error
	if sm.mutationsTotal, err = NewCounter(cfg.Meter, "stock_mutations_total",
		"Stock mutations by operation and outcome", "{mutation}"); err != nil {
		return nil, err
	}
	if sm.conflictsTotal, err = NewCounter(cfg.Meter, "stock_version_conflicts_total",
		"Optimistic concurrency conflicts that triggered a retry", "{conflict}"); err != nil {
		return nil, err
	}
	if sm.containersOpenedTotal, err = NewCounter(cfg.Meter, "stock_containers_opened_total",
		"Sealed containers opened to satisfy a partial sale", "{container}"); err != nil {
		return nil, err
	}
	if sm.oversoldTotal, err = NewCounter(cfg.Meter, "stock_oversold_total",
		"Partial sales that drove a container negative", "{sale}"); err != nil {
		return nil, err
	}
	if sm.movementsTotal, err = NewCounter(cfg.Meter, "stock_movements_total",
		"Ledger movements by type and application path", "{movement}"); err != nil {
		return nil, err
	}
	if sm.belowReorderProducts, err = NewGauge(cfg.Meter, "stock_below_reorder_point_products",
		"Products at or below their reorder point", "{product}"); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordMutation counts a finished stock mutation
func (sm *StockMetrics) RecordMutation(ctx context.Context, operation string, err error) {
	outcome := "success"
	attrs := []attribute.KeyValue{AttrOperation.String(operation)}
	if err != nil {
		outcome = "failure"
		attrs = append(attrs, AttrErrorCode.String(errorCode(err)))
	}
	sm.mutationsTotal.Inc(ctx, append(attrs, AttrOutcome.String(outcome))...)
}

// RecordConflict counts a version conflict that led to a retry
func (sm *StockMetrics) RecordConflict(ctx context.Context, operation string) {
	sm.conflictsTotal.Inc(ctx, AttrOperation.String(operation))
}

// RecordContainerOpened counts a sealed container being opened
func (sm *StockMetrics) RecordContainerOpened(ctx context.Context, productID uuid.UUID) {
	sm.containersOpenedTotal.Inc(ctx, AttrProductID.String(productID.String()))
}

// RecordOversold counts a partial sale that left a container negative
func (sm *StockMetrics) RecordOversold(ctx context.Context, productID uuid.UUID) {
	sm.oversoldTotal.Inc(ctx, AttrProductID.String(productID.String()))
}

// RecordMovement counts a ledger movement
func (sm *StockMetrics) RecordMovement(ctx context.Context, movementType, path string) {
	sm.movementsTotal.Inc(ctx, AttrMovementType.String(movementType), AttrStockPath.String(path))
}

// StartPeriodicCollection samples the low-stock gauge until ctx ends or Stop is called.
// It does nothing without a StockLevelProvider and only starts once.
func (sm *StockMetrics) StartPeriodicCollection(ctx context.Context) {
	if sm.levelProvider == nil {
		return
	}
	sm.collectOnce.Do(func() {
		go sm.runPeriodicCollection(ctx)
	})
}

func (sm *StockMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(sm.collectInterval)
	defer ticker.Stop()

	sm.CollectNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.stopChan:
			return
		case <-ticker.C:
			sm.CollectNow(ctx)
		}
	}
}

// CollectNow samples the low-stock gauge once
func (sm *StockMetrics) CollectNow(ctx context.Context) {
	if sm.levelProvider == nil {
		return
	}
	count, err := sm.levelProvider.CountBelowReorderPoint(ctx)
	if err != nil {
		sm.logger.Warn("failed to collect low stock count", zap.Error(err))
		return
	}
	sm.belowReorderProducts.Record(ctx, count)
}

// Stop ends periodic collection. Safe to call more than once.
func (sm *StockMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

func errorCode(err error) string {
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CONTEXT_DONE"
	}
	return "INTERNAL"
}
