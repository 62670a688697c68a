package inventory

import (
	"context"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApplyResult reports how a movement changed stock
type ApplyResult struct {
	// Path is one of PathContainer, PathAtomic or PathNoop
	Path string
	// Stock is the new product state; nil unless Path is PathContainer
	Stock    *inventory.ProductStock
	Mutation *inventory.MutationResult
}

// MovementApplier turns a ledger entry into a stock mutation.
//
// Container-tracked products only change through the StockEngine. A movement
// with a container status is applied as that container operation; an outbound
// movement without one is drawn FIFO from the opened containers. Untracked
// products are changed by a single atomic delta on their counters.
type MovementApplier struct {
	engine *inventory.StockEngine
	logger *zap.Logger
}

// NewMovementApplier creates a new MovementApplier
func NewMovementApplier(engine *inventory.StockEngine, logger *zap.Logger) *MovementApplier {
	if engine == nil {
		engine = inventory.NewStockEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementApplier{engine: engine, logger: logger}
}

// Apply mutates stock for m using the repositories of the current transaction
func (a *MovementApplier) Apply(ctx context.Context, repos TransactionalRepositories, m *inventory.InventoryMovement) (*ApplyResult, error) {
	direction := m.MovementType.StockDirection()
	if direction == 0 {
		a.logger.Info("movement does not change on-hand stock",
			zap.String("movement_id", m.ID.String()),
			zap.String("movement_type", m.MovementType.String()),
		)
		return &ApplyResult{Path: PathNoop}, nil
	}

	if m.HasContainerStatus() {
		return a.applyContainer(ctx, repos, m, direction, *m.ContainerStatus)
	}

	product, err := repos.ProductRepo().FindByID(ctx, m.ProductID)
	if err != nil {
		return nil, err
	}
	if product.ContainerTracked {
		if direction > 0 {
			return nil, inventory.ErrContainerStatusRequired
		}
		a.logger.Debug("drawing movement from opened containers",
			zap.String("movement_id", m.ID.String()),
			zap.String("product_id", m.ProductID.String()),
		)
		return a.applyContainer(ctx, repos, m, direction, inventory.MovementContainerPartial)
	}

	delta := m.ConvertedQuantity
	if direction < 0 {
		delta = delta.Neg()
	}
	if err := repos.ProductRepo().ApplyStockDelta(ctx, m.ProductID, delta); err != nil {
		return nil, err
	}
	return &ApplyResult{Path: PathAtomic}, nil
}

func (a *MovementApplier) applyContainer(ctx context.Context, repos TransactionalRepositories, m *inventory.InventoryMovement, direction int, status inventory.MovementContainerStatus) (*ApplyResult, error) {
	var op stockOp

	switch {
	case direction < 0 && status == inventory.MovementContainerFull:
		op = func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
			next, result := a.engine.DeductFull(p)
			return next, result, nil
		}
	case direction < 0:
		opts := inventory.DeductOptions{
			ContainerID:    m.ContainerID,
			TransactionRef: m.Reference,
			UserID:         m.CreatedBy,
		}
		op = func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
			return a.engine.DeductPartial(p, m.ConvertedQuantity, opts)
		}
	case status == inventory.MovementContainerFull:
		count := fullContainerCount(m.Quantity)
		op = func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
			return a.engine.ReplenishFull(p, count)
		}
	default:
		remaining := m.ConvertedQuantity
		if m.RemainingQuantity != nil {
			remaining = *m.RemainingQuantity
		}
		op = func(p *inventory.ProductStock) (*inventory.ProductStock, *inventory.MutationResult, error) {
			return a.engine.ReplenishPartial(p, m.ContainerID, remaining)
		}
	}

	next, result, err := mutateProduct(ctx, repos.ProductRepo(), m.ProductID, op)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{Path: PathContainer, Stock: next, Mutation: result}, nil
}

// fullContainerCount is the whole number of sealed containers a quantity represents, at least one
func fullContainerCount(q decimal.Decimal) int {
	n := int(q.IntPart())
	if n < 1 {
		return 1
	}
	return n
}
