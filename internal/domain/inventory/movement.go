package inventory

import (
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType represents the kind of stock-affecting event
type MovementType string

const (
	MovementTypeSale                  MovementType = "sale"
	MovementTypeReturn                MovementType = "return"
	MovementTypeAdjustment            MovementType = "adjustment"
	MovementTypeTransfer              MovementType = "transfer"
	MovementTypeFixedBlend            MovementType = "fixed_blend"
	MovementTypeBundleSale            MovementType = "bundle_sale"
	MovementTypeBundleBlendIngredient MovementType = "bundle_blend_ingredient"
	MovementTypeBlendIngredient       MovementType = "blend_ingredient"
	MovementTypeCustomBlend           MovementType = "custom_blend"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale,
		MovementTypeReturn,
		MovementTypeAdjustment,
		MovementTypeTransfer,
		MovementTypeFixedBlend,
		MovementTypeBundleSale,
		MovementTypeBundleBlendIngredient,
		MovementTypeBlendIngredient,
		MovementTypeCustomBlend:
		return true
	}
	return false
}

// StockDirection returns -1 for types that consume stock, +1 for types that
// add it and 0 for transfers, which do not change on-hand stock.
func (t MovementType) StockDirection() int {
	switch t {
	case MovementTypeSale,
		MovementTypeFixedBlend,
		MovementTypeBundleSale,
		MovementTypeBundleBlendIngredient,
		MovementTypeBlendIngredient,
		MovementTypeCustomBlend:
		return -1
	case MovementTypeReturn, MovementTypeAdjustment:
		return 1
	}
	return 0
}

// IsBlendConsumption returns true for the types recorded when blends or bundles consume ingredients
func (t MovementType) IsBlendConsumption() bool {
	switch t {
	case MovementTypeFixedBlend,
		MovementTypeBundleSale,
		MovementTypeBundleBlendIngredient,
		MovementTypeBlendIngredient,
		MovementTypeCustomBlend:
		return true
	}
	return false
}

// MovementContainerStatus marks which kind of container a movement targets.
// Oversold is a derived state and cannot be targeted.
type MovementContainerStatus string

const (
	MovementContainerFull    MovementContainerStatus = "full"
	MovementContainerPartial MovementContainerStatus = "partial"
	MovementContainerEmpty   MovementContainerStatus = "empty"
)

// IsValid returns true if the container status can be targeted by a movement
func (s MovementContainerStatus) IsValid() bool {
	switch s {
	case MovementContainerFull, MovementContainerPartial, MovementContainerEmpty:
		return true
	}
	return false
}

// InventoryMovement is an immutable ledger entry for one stock-affecting event.
// Corrections are made with new offsetting movements, never by editing.
type InventoryMovement struct {
	shared.BaseEntity
	ProductID           uuid.UUID
	MovementType        MovementType
	Quantity            decimal.Decimal
	UnitOfMeasurementID *uuid.UUID
	BaseUnit            string
	ConvertedQuantity   decimal.Decimal
	Reference           string
	CreatedBy           string
	ContainerStatus     *MovementContainerStatus
	ContainerID         string
	RemainingQuantity   *decimal.Decimal
}

// NewInventoryMovement creates a new movement. ConvertedQuantity starts equal to
// quantity; callers that know the unit's rate override it with WithConvertedQuantity.
func NewInventoryMovement(productID uuid.UUID, movementType MovementType, quantity decimal.Decimal, now time.Time) (*InventoryMovement, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, ErrInvalidMovementType
	}
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	return &InventoryMovement{
		BaseEntity:        shared.NewBaseEntityAt(now),
		ProductID:         productID,
		MovementType:      movementType,
		Quantity:          quantity,
		ConvertedQuantity: quantity,
	}, nil
}

// HasContainerStatus reports whether the movement targets container state
func (m *InventoryMovement) HasContainerStatus() bool {
	return m.ContainerStatus != nil
}

// WithUnit sets the unit of measurement the quantity was entered in
func (m *InventoryMovement) WithUnit(unitID uuid.UUID) *InventoryMovement {
	m.UnitOfMeasurementID = &unitID
	return m
}

// WithBaseUnit sets the base unit code of the converted quantity
func (m *InventoryMovement) WithBaseUnit(baseUnit string) *InventoryMovement {
	m.BaseUnit = baseUnit
	return m
}

// WithConvertedQuantity sets the quantity expressed in base units
func (m *InventoryMovement) WithConvertedQuantity(q decimal.Decimal) *InventoryMovement {
	m.ConvertedQuantity = q
	return m
}

// WithReference sets the external transaction reference
func (m *InventoryMovement) WithReference(reference string) *InventoryMovement {
	m.Reference = reference
	return m
}

// WithCreatedBy sets the user that recorded the movement
func (m *InventoryMovement) WithCreatedBy(createdBy string) *InventoryMovement {
	m.CreatedBy = createdBy
	return m
}

// WithContainer targets container-tracked stock
func (m *InventoryMovement) WithContainer(status MovementContainerStatus, containerID string, remaining *decimal.Decimal) (*InventoryMovement, error) {
	if !status.IsValid() {
		return nil, ErrInvalidContainerStatus
	}
	if remaining != nil && remaining.IsNegative() {
		return nil, shared.NewDomainError(ErrInvalidQuantity.Code, "Remaining quantity cannot be negative")
	}
	m.ContainerStatus = &status
	m.ContainerID = containerID
	if remaining != nil {
		r := *remaining
		m.RemainingQuantity = &r
	}
	return m, nil
}

// DedupKey identifies the movement for best-effort duplicate detection
func (m *InventoryMovement) DedupKey() string {
	return m.Reference + "|" + m.ProductID.String() + "|" + m.MovementType.String()
}
