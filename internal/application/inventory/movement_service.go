package inventory

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MovementService records ledger entries and applies them to stock
type MovementService struct {
	txScope        TransactionScope
	movementRepo   inventory.MovementRepository
	applier        *MovementApplier
	idempotency    shared.IdempotencyStore
	idempotencyCfg shared.IdempotencyConfig
	eventPublisher shared.EventPublisher
	metrics        StockMetrics
	logger         *zap.Logger
	maxRetries     int
	now            func() time.Time
}

// NewMovementService creates a new MovementService
func NewMovementService(
	txScope TransactionScope,
	movementRepo inventory.MovementRepository,
	applier *MovementApplier,
	logger *zap.Logger,
) *MovementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if applier == nil {
		applier = NewMovementApplier(nil, logger)
	}
	return &MovementService{
		txScope:        txScope,
		movementRepo:   movementRepo,
		applier:        applier,
		idempotencyCfg: shared.DefaultIdempotencyConfig(),
		metrics:        noopStockMetrics{},
		logger:         logger,
		maxRetries:     DefaultMaxRetries,
		now:            time.Now,
	}
}

// SetIdempotencyStore enables best-effort duplicate detection on
// (reference, product, movement type). Movements without a reference are never deduplicated.
func (s *MovementService) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	s.idempotency = store
	s.idempotencyCfg = cfg
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *MovementService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *MovementService) SetMetrics(metrics StockMetrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// SetMaxRetries sets how many times a conflicting transaction is retried
func (s *MovementService) SetMaxRetries(n int) {
	if n >= 0 {
		s.maxRetries = n
	}
}

// RecordMovement appends one movement to the ledger and applies it to stock
// in the same transaction.
func (s *MovementService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResponse, error) {
	out, err := s.RecordMovements(ctx, []RecordMovementRequest{req})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// RecordMovements records several movements atomically: either every
// movement is stored and applied, or none is.
func (s *MovementService) RecordMovements(ctx context.Context, reqs []RecordMovementRequest) ([]MovementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "movement", "record_movements")
	defer span.End()
	telemetry.SetAttribute(span, "movement_count", len(reqs))

	if len(reqs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one movement is required")
	}

	movements := make([]*inventory.InventoryMovement, len(reqs))
	for i, req := range reqs {
		m, err := s.buildMovement(req)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		movements[i] = m
	}
	explicit := func(i int) bool { return reqs[i].ConvertedQuantity != nil }
	telemetry.SetAttribute(span, telemetry.SpanAttrReference, movements[0].Reference)

	claimed, err := s.claimReferences(ctx, movements)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var results []*ApplyResult
	err = retryOnConflict(ctx, s.maxRetries, func(attempt int) {
		s.metrics.RecordConflict(ctx, "record_movement")
		s.logger.Debug("movement transaction conflicted, retrying", zap.Int("attempt", attempt+1))
	}, func() error {
		results = results[:0]
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			for i, m := range movements {
				if err := s.resolveQuantities(ctx, repos, m, explicit(i)); err != nil {
					return err
				}
				result, err := s.applier.Apply(ctx, repos, m)
				if err != nil {
					return err
				}
				if err := repos.MovementRepo().Append(ctx, m); err != nil {
					return err
				}
				results = append(results, result)
			}
			return nil
		})
	})
	s.metrics.RecordMutation(ctx, "record_movement", err)
	if err != nil {
		s.releaseReferences(ctx, claimed)
		telemetry.RecordError(span, err)
		s.logger.Warn("failed to record movements",
			zap.Int("count", len(movements)),
			zap.String("reference", movements[0].Reference),
			zap.Error(err),
		)
		return nil, err
	}

	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		result := results[i]
		s.metrics.RecordMovement(ctx, m.MovementType.String(), result.Path)
		telemetry.AddEvent(span, "movement_applied",
			telemetry.SpanAttrProductID, m.ProductID.String(),
			telemetry.SpanAttrMovementType, m.MovementType.String(),
			telemetry.SpanAttrStockPath, result.Path,
		)
		if result.Stock != nil {
			recordMutationResult(ctx, s.metrics, s.logger, result.Stock, result.Mutation)
			publishEvents(ctx, s.eventPublisher, s.logger, result.Mutation.Events)
		}
		out[i] = *ToMovementResponse(m)
		out[i].StockPath = result.Path

		s.logger.Info("movement recorded",
			zap.String("movement_id", m.ID.String()),
			zap.String("product_id", m.ProductID.String()),
			zap.String("movement_type", m.MovementType.String()),
			zap.String("converted_quantity", m.ConvertedQuantity.String()),
			zap.String("reference", m.Reference),
			zap.String("path", result.Path),
		)
	}
	telemetry.SetOK(span)
	return out, nil
}

// GetMovement returns one ledger entry
func (s *MovementService) GetMovement(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.movementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToMovementResponse(m), nil
}

// ListByProduct pages through the ledger of one product
func (s *MovementService) ListByProduct(ctx context.Context, productID uuid.UUID, filter MovementListFilter) ([]MovementResponse, int64, error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	movements, total, err := s.movementRepo.FindByProduct(ctx, productID, f)
	if err != nil {
		return nil, 0, err
	}
	return ToMovementResponses(movements), total, nil
}

// ListByReference returns every movement recorded for an external reference
func (s *MovementService) ListByReference(ctx context.Context, reference string) ([]MovementResponse, error) {
	movements, err := s.movementRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(movements), nil
}

func (s *MovementService) buildMovement(req RecordMovementRequest) (*inventory.InventoryMovement, error) {
	m, err := inventory.NewInventoryMovement(req.ProductID, inventory.MovementType(req.MovementType), req.Quantity, s.now())
	if err != nil {
		return nil, err
	}
	m.WithReference(req.Reference).WithCreatedBy(req.CreatedBy)
	if req.UnitID != nil {
		m.WithUnit(*req.UnitID)
	}
	if req.ConvertedQuantity != nil {
		if !req.ConvertedQuantity.IsPositive() {
			return nil, shared.NewDomainError(inventory.ErrInvalidQuantity.Code, "Converted quantity must be positive")
		}
		m.WithConvertedQuantity(*req.ConvertedQuantity)
	}
	if req.Container != nil {
		if _, err := m.WithContainer(inventory.MovementContainerStatus(req.Container.Status), req.Container.ContainerID, req.Container.RemainingQuantity); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// resolveQuantities fills in the base unit and, unless the caller supplied
// one, the converted quantity. A missing unit or rate leaves the quantity as is.
func (s *MovementService) resolveQuantities(ctx context.Context, repos TransactionalRepositories, m *inventory.InventoryMovement, explicitConversion bool) error {
	var unit *inventory.UnitOfMeasurement
	if m.UnitOfMeasurementID != nil {
		u, err := repos.UnitRepo().FindByID(ctx, *m.UnitOfMeasurementID)
		switch {
		case err == nil:
			unit = u
		case errors.Is(err, inventory.ErrUnitNotFound):
			s.logger.Debug("unit of measurement not found, using quantity as base quantity",
				zap.String("unit_id", m.UnitOfMeasurementID.String()))
		default:
			return err
		}
	}

	if !explicitConversion {
		m.WithConvertedQuantity(unit.ToBase(m.Quantity))
	}

	if m.BaseUnit == "" {
		if unit != nil && unit.BaseUnit != "" {
			m.WithBaseUnit(unit.BaseUnit)
		} else {
			product, err := repos.ProductRepo().FindByID(ctx, m.ProductID)
			if err != nil {
				return err
			}
			m.WithBaseUnit(product.BaseUnit)
		}
	}
	return nil
}

func (s *MovementService) claimReferences(ctx context.Context, movements []*inventory.InventoryMovement) ([]string, error) {
	if s.idempotency == nil || !s.idempotencyCfg.Enabled {
		return nil, nil
	}
	claimed := make([]string, 0, len(movements))
	for _, m := range movements {
		if m.Reference == "" {
			continue
		}
		key := m.DedupKey()
		// several lines of one batch may share a key, e.g. two sales of one product on a receipt
		if slices.Contains(claimed, key) {
			continue
		}
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyCfg.TTL)
		if err != nil {
			s.releaseReferences(ctx, claimed)
			return nil, err
		}
		if !fresh {
			s.releaseReferences(ctx, claimed)
			s.logger.Info("duplicate movement rejected", zap.String("key", key))
			return nil, inventory.ErrDuplicateMovement
		}
		claimed = append(claimed, key)
	}
	return claimed, nil
}

func (s *MovementService) releaseReferences(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.idempotency.Release(ctx, key); err != nil {
			s.logger.Warn("failed to release movement reference", zap.String("key", key), zap.Error(err))
		}
	}
}
