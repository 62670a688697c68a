package inventory

import (
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest registers a product. A positive ContainerCapacity makes
// the product container-tracked and FullContainers its sealed stock; otherwise
// InitialStock is its on-hand quantity in base units.
type CreateProductRequest struct {
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	BaseUnit          string          `json:"base_unit" binding:"omitempty,max=20"`
	ContainerCapacity decimal.Decimal `json:"container_capacity"`
	FullContainers    int             `json:"full_containers" binding:"min=0"`
	InitialStock      decimal.Decimal `json:"initial_stock"`
	ReorderPoint      decimal.Decimal `json:"reorder_point"`
}

// DeductPartialRequest removes a quantity from one container
type DeductPartialRequest struct {
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	ContainerID    string          `json:"container_id,omitempty"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
}

// ReplenishPartialRequest adds a tracked container, typically on a return
type ReplenishPartialRequest struct {
	ContainerID string          `json:"container_id,omitempty"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// ReplenishFullRequest adds sealed containers
type ReplenishFullRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

// SaleRecordView is a container audit entry in API responses
type SaleRecordView struct {
	TransactionRef string          `json:"transaction_ref,omitempty"`
	QuantitySold   decimal.Decimal `json:"quantity_sold"`
	SoldBy         string          `json:"sold_by,omitempty"`
	SoldAt         time.Time       `json:"sold_at"`
}

// ContainerView is a partial container in API responses
type ContainerView struct {
	ID          string           `json:"id"`
	Remaining   decimal.Decimal  `json:"remaining"`
	Capacity    decimal.Decimal  `json:"capacity"`
	Status      string           `json:"status"`
	OpenedAt    *time.Time       `json:"opened_at,omitempty"`
	SaleHistory []SaleRecordView `json:"sale_history"`
}

// ContainersView groups sealed and opened containers
type ContainersView struct {
	Full    int             `json:"full"`
	Partial []ContainerView `json:"partial"`
}

// ProductStockView is the stock state returned by every stock operation
type ProductStockView struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	BaseUnit          string          `json:"base_unit"`
	ContainerTracked  bool            `json:"container_tracked"`
	ContainerCapacity decimal.Decimal `json:"container_capacity"`
	CurrentStock      decimal.Decimal `json:"current_stock"`
	AvailableStock    decimal.Decimal `json:"available_stock"`
	ReorderPoint      decimal.Decimal `json:"reorder_point"`
	BelowReorderPoint bool            `json:"below_reorder_point"`
	Containers        ContainersView  `json:"containers"`
	Version           int             `json:"version"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToProductStockView converts domain stock to its API view
func ToProductStockView(p *inventory.ProductStock) *ProductStockView {
	partial := make([]ContainerView, len(p.PartialContainers))
	for i, c := range p.PartialContainers {
		history := make([]SaleRecordView, len(c.SaleHistory))
		for j, h := range c.SaleHistory {
			history[j] = SaleRecordView(h)
		}
		partial[i] = ContainerView{
			ID:          c.ID,
			Remaining:   c.Remaining,
			Capacity:    c.Capacity,
			Status:      c.Status.String(),
			OpenedAt:    c.OpenedAt,
			SaleHistory: history,
		}
	}
	return &ProductStockView{
		ID:                p.ID,
		Name:              p.Name,
		BaseUnit:          p.BaseUnit,
		ContainerTracked:  p.ContainerTracked,
		ContainerCapacity: p.ContainerCapacity,
		CurrentStock:      p.CurrentStock,
		AvailableStock:    p.AvailableStock,
		ReorderPoint:      p.ReorderPoint,
		BelowReorderPoint: p.IsBelowReorderPoint(),
		Containers: ContainersView{
			Full:    p.FullContainers,
			Partial: partial,
		},
		Version:   p.Version,
		UpdatedAt: p.UpdatedAt,
	}
}

// ContainerFields target container-tracked stock from a movement
type ContainerFields struct {
	Status            string           `json:"status" binding:"required,oneof=full partial empty"`
	ContainerID       string           `json:"container_id,omitempty"`
	RemainingQuantity *decimal.Decimal `json:"remaining_quantity,omitempty"`
}

// RecordMovementRequest records one stock-affecting event
type RecordMovementRequest struct {
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	MovementType string          `json:"movement_type" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	UnitID       *uuid.UUID      `json:"unit_of_measurement_id,omitempty"`
	// ConvertedQuantity overrides the unit-based conversion when set
	ConvertedQuantity *decimal.Decimal `json:"converted_quantity,omitempty"`
	Reference         string           `json:"reference,omitempty" binding:"max=100"`
	CreatedBy         string           `json:"created_by,omitempty" binding:"max=100"`
	Container         *ContainerFields `json:"container,omitempty"`
}

// MovementResponse represents a ledger entry in API responses
type MovementResponse struct {
	ID                  uuid.UUID        `json:"id"`
	ProductID           uuid.UUID        `json:"product_id"`
	MovementType        string           `json:"movement_type"`
	Quantity            decimal.Decimal  `json:"quantity"`
	UnitOfMeasurementID *uuid.UUID       `json:"unit_of_measurement_id,omitempty"`
	BaseUnit            string           `json:"base_unit"`
	ConvertedQuantity   decimal.Decimal  `json:"converted_quantity"`
	Reference           string           `json:"reference,omitempty"`
	CreatedBy           string           `json:"created_by,omitempty"`
	ContainerStatus     string           `json:"container_status,omitempty"`
	ContainerID         string           `json:"container_id,omitempty"`
	RemainingQuantity   *decimal.Decimal `json:"remaining_quantity,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	// StockPath is only set on freshly recorded movements
	StockPath string `json:"stock_path,omitempty"`
}

// ToMovementResponse converts a domain movement to its API representation
func ToMovementResponse(m *inventory.InventoryMovement) *MovementResponse {
	resp := &MovementResponse{
		ID:                  m.ID,
		ProductID:           m.ProductID,
		MovementType:        m.MovementType.String(),
		Quantity:            m.Quantity,
		UnitOfMeasurementID: m.UnitOfMeasurementID,
		BaseUnit:            m.BaseUnit,
		ConvertedQuantity:   m.ConvertedQuantity,
		Reference:           m.Reference,
		CreatedBy:           m.CreatedBy,
		ContainerID:         m.ContainerID,
		RemainingQuantity:   m.RemainingQuantity,
		CreatedAt:           m.CreatedAt,
	}
	if m.ContainerStatus != nil {
		resp.ContainerStatus = string(*m.ContainerStatus)
	}
	return resp
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(ms []inventory.InventoryMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i := range ms {
		out[i] = *ToMovementResponse(&ms[i])
	}
	return out
}

// MovementListFilter represents list options for the movement ledger
type MovementListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// BlendIngredient is one ingredient consumed by a blend
type BlendIngredient struct {
	ProductID uuid.UUID        `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal  `json:"quantity" binding:"required"`
	Unit      string           `json:"unit" binding:"required"`
	Container *ContainerFields `json:"container,omitempty"`
}

// ConsumeBlendRequest records the ingredients a blend or bundle used
type ConsumeBlendRequest struct {
	Reference    string            `json:"reference" binding:"required,max=100"`
	CreatedBy    string            `json:"created_by,omitempty"`
	MovementType string            `json:"movement_type" binding:"required"`
	Ingredients  []BlendIngredient `json:"ingredients" binding:"required,min=1,dive"`
}

// ConsumeBlendResponse lists the movements recorded for a blend
type ConsumeBlendResponse struct {
	Reference string             `json:"reference"`
	Movements []MovementResponse `json:"movements"`
}
