package models

import (
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryMovementModel is the persistence model of the append-only ledger
type InventoryMovementModel struct {
	BaseModel
	ProductID           uuid.UUID        `gorm:"type:uuid;not null;index:idx_movements_reference_product_type,priority:2"`
	MovementType        string           `gorm:"type:varchar(32);not null;index:idx_movements_reference_product_type,priority:3"`
	Quantity            decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	UnitOfMeasurementID *uuid.UUID       `gorm:"type:uuid"`
	BaseUnit            string           `gorm:"type:varchar(32);not null;default:''"`
	ConvertedQuantity   decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Reference           string           `gorm:"type:varchar(100);not null;default:'';index:idx_movements_reference_product_type,priority:1"`
	CreatedBy           string           `gorm:"type:varchar(100);not null;default:''"`
	ContainerStatus     *string          `gorm:"type:varchar(16)"`
	ContainerID         string           `gorm:"type:varchar(64);not null;default:''"`
	RemainingQuantity   *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (InventoryMovementModel) TableName() string {
	return "inventory_movements"
}

// ToDomain converts the persistence model to a domain InventoryMovement
func (m *InventoryMovementModel) ToDomain() *inventory.InventoryMovement {
	mv := &inventory.InventoryMovement{
		BaseEntity:          m.BaseModel.ToDomain(),
		ProductID:           m.ProductID,
		MovementType:        inventory.MovementType(m.MovementType),
		Quantity:            m.Quantity,
		UnitOfMeasurementID: m.UnitOfMeasurementID,
		BaseUnit:            m.BaseUnit,
		ConvertedQuantity:   m.ConvertedQuantity,
		Reference:           m.Reference,
		CreatedBy:           m.CreatedBy,
		ContainerID:         m.ContainerID,
		RemainingQuantity:   m.RemainingQuantity,
	}
	if m.ContainerStatus != nil {
		status := inventory.MovementContainerStatus(*m.ContainerStatus)
		mv.ContainerStatus = &status
	}
	return mv
}

// FromDomain populates the persistence model from a domain InventoryMovement
func (m *InventoryMovementModel) FromDomain(mv *inventory.InventoryMovement) {
	m.FromDomainBaseEntity(mv.BaseEntity)
	m.ProductID = mv.ProductID
	m.MovementType = string(mv.MovementType)
	m.Quantity = mv.Quantity
	m.UnitOfMeasurementID = mv.UnitOfMeasurementID
	m.BaseUnit = mv.BaseUnit
	m.ConvertedQuantity = mv.ConvertedQuantity
	m.Reference = mv.Reference
	m.CreatedBy = mv.CreatedBy
	m.ContainerID = mv.ContainerID
	m.RemainingQuantity = mv.RemainingQuantity
	m.ContainerStatus = nil
	if mv.ContainerStatus != nil {
		status := string(*mv.ContainerStatus)
		m.ContainerStatus = &status
	}
}

// InventoryMovementModelFromDomain creates a persistence model from a domain movement
func InventoryMovementModelFromDomain(mv *inventory.InventoryMovement) *InventoryMovementModel {
	m := &InventoryMovementModel{}
	m.FromDomain(mv)
	return m
}

// MovementsToDomain converts a slice of models
func MovementsToDomain(rows []InventoryMovementModel) []inventory.InventoryMovement {
	result := make([]inventory.InventoryMovement, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}
