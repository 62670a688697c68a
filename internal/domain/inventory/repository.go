package inventory

import (
	"context"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStockRepository defines persistence for container-aware product stock
type ProductStockRepository interface {
	// FindByID loads the stock of a product; returns ErrProductNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*ProductStock, error)

	// Create inserts a new product stock record
	Create(ctx context.Context, p *ProductStock) error

	// SaveWithLock persists p only if the stored version is p.Version-1.
	// Returns shared.ErrConcurrencyConflict otherwise.
	SaveWithLock(ctx context.Context, p *ProductStock) error

	// ApplyStockDelta atomically adds delta to current and available stock
	// in a single write. Returns ErrProductNotFound when no row matched.
	ApplyStockDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	// FindBelowReorderPoint lists products at or under their reorder point
	FindBelowReorderPoint(ctx context.Context, filter shared.Filter) ([]ProductStock, error)
}

// MovementRepository is the append-only movement ledger. It has no
// update or delete.
type MovementRepository interface {
	// Append inserts a movement
	Append(ctx context.Context, m *InventoryMovement) error

	// FindByID finds a movement by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryMovement, error)

	// FindByProduct lists movements of a product, newest first by default
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]InventoryMovement, int64, error)

	// FindByReference lists movements recorded for an external reference
	FindByReference(ctx context.Context, reference string) ([]InventoryMovement, error)

	// ExistsForReference checks the (reference, product, type) compound key
	ExistsForReference(ctx context.Context, reference string, productID uuid.UUID, movementType MovementType) (bool, error)
}

// UnitRepository reads units of measurement
type UnitRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*UnitOfMeasurement, error)
	Save(ctx context.Context, u *UnitOfMeasurement) error
}
