// Package scheduler runs time-of-day jobs inside the server process.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrInvalidConfig is returned when the trigger configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// BelowReorderLister pages through products at or below their reorder point
type BelowReorderLister interface {
	FindBelowReorderPoint(ctx context.Context, filter shared.Filter) ([]inventory.ProductStock, error)
}

// ReorderDigestConfig holds configuration for the daily reorder digest
type ReorderDigestConfig struct {
	// Hour and Minute of the daily run, local time, 24h format
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// PageSize bounds each repository read
	PageSize int
}

// DefaultReorderDigestConfig returns a 07:00 digest checked every minute
func DefaultReorderDigestConfig() ReorderDigestConfig {
	return ReorderDigestConfig{
		Hour:          7,
		Minute:        0,
		CheckInterval: time.Minute,
		PageSize:      100,
	}
}

func (c ReorderDigestConfig) validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ErrInvalidConfig
	}
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return ErrInvalidConfig
	}
	return nil
}

// ReorderDigestTrigger re-sends one alert per product still at or below its
// reorder point once a day. Event-driven alerts fire only when stock drops;
// the digest keeps unresolved shortages visible.
type ReorderDigestTrigger struct {
	config   ReorderDigestConfig
	products BelowReorderLister
	notifier inventoryapp.StockAlertNotifier
	logger   *zap.Logger
	now      func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewReorderDigestTrigger creates a new trigger
func NewReorderDigestTrigger(
	config ReorderDigestConfig,
	products BelowReorderLister,
	notifier inventoryapp.StockAlertNotifier,
	logger *zap.Logger,
) (*ReorderDigestTrigger, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultReorderDigestConfig().PageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReorderDigestTrigger{
		config:   config,
		products: products,
		notifier: notifier,
		logger:   logger.Named("reorder_digest"),
		now:      time.Now,
	}, nil
}

// Start starts the trigger loop
func (t *ReorderDigestTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reorder digest trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger, waiting for a running digest to finish
func (t *ReorderDigestTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Reorder digest trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ReorderDigestTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the digest at most once per calendar day
func (t *ReorderDigestTrigger) checkAndTrigger(ctx context.Context) bool {
	now := t.now()
	currentDate := now.Format("2006-01-02")

	t.mu.Lock()
	if t.lastRunDate == currentDate {
		t.mu.Unlock()
		return false
	}
	if now.Hour() != t.config.Hour || now.Minute() != t.config.Minute {
		t.mu.Unlock()
		return false
	}
	t.lastRunDate = currentDate
	t.mu.Unlock()

	sent, err := t.RunNow(ctx)
	if err != nil {
		t.logger.Error("Reorder digest failed", zap.Int("alerts_sent", sent), zap.Error(err))
		return true
	}
	t.logger.Info("Reorder digest sent", zap.Int("alerts_sent", sent))
	return true
}

// RunNow sends the digest immediately and returns the number of alerts sent.
// A failed notification is logged and does not stop the digest.
func (t *ReorderDigestTrigger) RunNow(ctx context.Context) (int, error) {
	filter := shared.DefaultFilter()
	filter.PageSize = t.config.PageSize

	sent := 0
	for page := 1; ; page++ {
		filter.Page = page
		products, err := t.products.FindBelowReorderPoint(ctx, filter)
		if err != nil {
			return sent, err
		}

		for i := range products {
			alert := digestAlert(&products[i])
			if err := t.notifier.SendAlert(ctx, alert); err != nil {
				t.logger.Warn("Failed to send reorder digest alert",
					zap.String("product_id", alert.ProductID),
					zap.Error(err),
				)
				continue
			}
			sent++
		}

		if len(products) < filter.Limit() {
			return sent, nil
		}
	}
}

func digestAlert(p *inventory.ProductStock) inventoryapp.StockAlert {
	alertType := "low_stock"
	if !p.CurrentStock.IsPositive() {
		alertType = "out_of_stock"
	}
	return inventoryapp.StockAlert{
		ProductID:    p.ID.String(),
		ProductName:  p.Name,
		CurrentStock: p.CurrentStock.String(),
		ReorderPoint: p.ReorderPoint.String(),
		AlertType:    alertType,
	}
}
