package inventory

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRetries is how many times a mutation is retried after losing a version race
const DefaultMaxRetries = 10

// stockOp computes the next state of a product from its current state
type stockOp func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error)

// mutateProduct runs one load, compute, compare-and-swap cycle on a container-tracked product
func mutateProduct(ctx context.Context, repo inventory.ProductStockRepository, productID uuid.UUID, op stockOp) (*inventory.ProductStock, *inventory.MutationResult, error) {
	current, err := repo.FindByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	// the engine rebuilds the counters from containers and would drop atomic deltas
	if !current.ContainerTracked {
		return nil, nil, inventory.ErrNotContainerTracked
	}
	next, result, err := op(current)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.SaveWithLock(ctx, next); err != nil {
		return nil, nil, err
	}
	return next, result, nil
}

// retryOnConflict calls fn until it returns something other than a version conflict
// or maxRetries extra attempts have been used.
func retryOnConflict(ctx context.Context, maxRetries int, onConflict func(attempt int), fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		onConflict(attempt)
		runtime.Gosched()
	}
	return err
}

// StockService exposes the container-aware stock operations of a product
type StockService struct {
	productRepo    inventory.ProductStockRepository
	engine         *inventory.StockEngine
	eventPublisher shared.EventPublisher
	metrics        StockMetrics
	logger         *zap.Logger
	maxRetries     int
}

// NewStockService creates a new StockService
func NewStockService(productRepo inventory.ProductStockRepository, engine *inventory.StockEngine, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = inventory.NewStockEngine()
	}
	return &StockService{
		productRepo: productRepo,
		engine:      engine,
		metrics:     noopStockMetrics{},
		logger:      logger,
		maxRetries:  DefaultMaxRetries,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *StockService) SetMetrics(metrics StockMetrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// SetMaxRetries sets how many times a conflicting mutation is retried
func (s *StockService) SetMaxRetries(n int) {
	if n >= 0 {
		s.maxRetries = n
	}
}

// CreateProduct registers a product with either sealed containers or a plain on-hand quantity
func (s *StockService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductStockView, error) {
	p, err := newProductFromRequest(req)
	if err != nil {
		return nil, err
	}
	if req.ReorderPoint.IsNegative() {
		return nil, shared.NewDomainError("INVALID_REORDER_POINT", "Reorder point cannot be negative")
	}
	p.ReorderPoint = req.ReorderPoint

	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product stock: %w", err)
	}

	s.logger.Info("product stock created",
		zap.String("product_id", p.ID.String()),
		zap.String("name", p.Name),
		zap.Bool("container_tracked", p.ContainerTracked),
		zap.Int("full_containers", p.FullContainers),
		zap.String("container_capacity", p.ContainerCapacity.String()),
		zap.String("current_stock", p.CurrentStock.String()),
	)
	return ToProductStockView(p), nil
}

func newProductFromRequest(req CreateProductRequest) (*inventory.ProductStock, error) {
	if req.ContainerCapacity.IsPositive() {
		if !req.InitialStock.IsZero() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Container-tracked products are stocked through full_containers")
		}
		return inventory.NewProductStock(req.Name, req.BaseUnit, req.ContainerCapacity, req.FullContainers)
	}
	if req.ContainerCapacity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Container capacity cannot be negative")
	}
	if req.FullContainers > 0 {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Sealed containers need a positive container capacity")
	}
	return inventory.NewUntrackedProductStock(req.Name, req.BaseUnit, req.InitialStock)
}

// GetStock returns the current stock of a product
func (s *StockService) GetStock(ctx context.Context, productID uuid.UUID) (*ProductStockView, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return ToProductStockView(p), nil
}

// ListBelowReorderPoint returns products at or under their reorder point
func (s *StockService) ListBelowReorderPoint(ctx context.Context, filter shared.Filter) ([]ProductStockView, error) {
	products, err := s.productRepo.FindBelowReorderPoint(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ProductStockView, len(products))
	for i := range products {
		views[i] = *ToProductStockView(&products[i])
	}
	return views, nil
}

// DeductPartial sells a quantity out of one opened container
func (s *StockService) DeductPartial(ctx context.Context, productID uuid.UUID, req DeductPartialRequest) (*ProductStockView, error) {
	opts := inventory.DeductOptions{
		ContainerID:    req.ContainerID,
		TransactionRef: req.TransactionRef,
		UserID:         req.UserID,
	}
	return s.mutate(ctx, "deduct_partial", productID, func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
		return s.engine.DeductPartial(p, req.Quantity, opts)
	})
}

// DeductFull sells one sealed container
func (s *StockService) DeductFull(ctx context.Context, productID uuid.UUID) (*ProductStockView, error) {
	return s.mutate(ctx, "deduct_full", productID, func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
		next, result := s.engine.DeductFull(p)
		return next, result, nil
	})
}

// ReplenishPartial puts an opened container back into stock
func (s *StockService) ReplenishPartial(ctx context.Context, productID uuid.UUID, req ReplenishPartialRequest) (*ProductStockView, error) {
	return s.mutate(ctx, "replenish_partial", productID, func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
		return s.engine.ReplenishPartial(p, req.ContainerID, req.Remaining)
	})
}

// ReplenishFull puts sealed containers back into stock
func (s *StockService) ReplenishFull(ctx context.Context, productID uuid.UUID, req ReplenishFullRequest) (*ProductStockView, error) {
	return s.mutate(ctx, "replenish_full", productID, func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
		return s.engine.ReplenishFull(p, req.Count)
	})
}

func (s *StockService) mutate(ctx context.Context, operation string, productID uuid.UUID, op stockOp) (*ProductStockView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", operation)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProductID, productID.String())

	var (
		next   *inventory.ProductStock
		result *inventory.MutationResult
	)
	err := retryOnConflict(ctx, s.maxRetries, func(attempt int) {
		s.metrics.RecordConflict(ctx, operation)
		s.logger.Debug("stock version conflict, retrying",
			zap.String("operation", operation),
			zap.String("product_id", productID.String()),
			zap.Int("attempt", attempt+1),
		)
	}, func() error {
		var err error
		next, result, err = mutateProduct(ctx, s.productRepo, productID, op)
		return err
	})
	s.metrics.RecordMutation(ctx, operation, err)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			s.logger.Warn("stock mutation gave up after repeated conflicts",
				zap.String("operation", operation),
				zap.String("product_id", productID.String()),
				zap.Int("max_retries", s.maxRetries),
			)
		}
		return nil, err
	}

	s.afterMutation(ctx, next, result)
	if result.OpenedContainer {
		telemetry.AddEvent(span, "container_opened", telemetry.SpanAttrContainerID, result.ContainerID)
	}
	telemetry.SetOK(span)

	s.logger.Debug("stock mutated",
		zap.String("operation", operation),
		zap.String("product_id", productID.String()),
		zap.String("current_stock", next.CurrentStock.String()),
		zap.Int("full_containers", next.FullContainers),
		zap.Int("version", next.Version),
	)
	return ToProductStockView(next), nil
}

// afterMutation records metrics for and publishes the events of a committed mutation
func (s *StockService) afterMutation(ctx context.Context, p *inventory.ProductStock, result *inventory.MutationResult) {
	recordMutationResult(ctx, s.metrics, s.logger, p, result)
	publishEvents(ctx, s.eventPublisher, s.logger, result.Events)
}

func recordMutationResult(ctx context.Context, metrics StockMetrics, logger *zap.Logger, p *inventory.ProductStock, result *inventory.MutationResult) {
	if result == nil {
		return
	}
	if result.OpenedContainer {
		metrics.RecordContainerOpened(ctx, p.ID)
	}
	if result.Oversold {
		metrics.RecordOversold(ctx, p.ID)
		logger.Warn("container oversold",
			zap.String("product_id", p.ID.String()),
			zap.String("container_id", result.ContainerID),
		)
	}
}

// publishEvents hands events to the publisher. Failures are logged, not returned,
// since the stock change is already committed.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish stock events", zap.Error(err), zap.Int("count", len(events)))
	}
}
