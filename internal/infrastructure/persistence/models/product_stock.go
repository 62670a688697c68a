package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// ContainerList stores a product's opened containers as a JSON array
type ContainerList []inventory.Container

// Value implements driver.Valuer
func (l ContainerList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal containers: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *ContainerList) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = ContainerList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan containers: unsupported type %T", value)
	}
	if len(data) == 0 {
		*l = ContainerList{}
		return nil
	}

	var containers []inventory.Container
	if err := json.Unmarshal(data, &containers); err != nil {
		return fmt.Errorf("scan containers: %w", err)
	}
	if containers == nil {
		containers = []inventory.Container{}
	}
	*l = containers
	return nil
}

// ProductStockModel is the persistence model of the products table
type ProductStockModel struct {
	BaseModel
	Name              string          `gorm:"type:varchar(200);not null"`
	BaseUnit          string          `gorm:"type:varchar(32);not null;default:unit"`
	ContainerTracked  bool            `gorm:"not null;default:false"`
	ContainerCapacity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	FullContainers    int             `gorm:"not null;default:0"`
	PartialContainers ContainerList   `gorm:"type:jsonb;not null"`
	CurrentStock      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AvailableStock    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReorderPoint      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Version           int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (ProductStockModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain ProductStock
func (m *ProductStockModel) ToDomain() *inventory.ProductStock {
	containers := make([]inventory.Container, len(m.PartialContainers))
	copy(containers, m.PartialContainers)
	return &inventory.ProductStock{
		ID:                m.ID,
		Name:              m.Name,
		BaseUnit:          m.BaseUnit,
		ContainerTracked:  m.ContainerTracked,
		ContainerCapacity: m.ContainerCapacity,
		FullContainers:    m.FullContainers,
		PartialContainers: containers,
		CurrentStock:      m.CurrentStock,
		AvailableStock:    m.AvailableStock,
		ReorderPoint:      m.ReorderPoint,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ProductStock
func (m *ProductStockModel) FromDomain(p *inventory.ProductStock) {
	m.ID = p.ID
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.Name = p.Name
	m.BaseUnit = p.BaseUnit
	m.ContainerTracked = p.ContainerTracked
	m.ContainerCapacity = p.ContainerCapacity
	m.FullContainers = p.FullContainers
	m.PartialContainers = ContainerList(p.PartialContainers)
	m.CurrentStock = p.CurrentStock
	m.AvailableStock = p.AvailableStock
	m.ReorderPoint = p.ReorderPoint
	m.Version = p.Version
}

// ProductStockModelFromDomain creates a persistence model from a domain ProductStock
func ProductStockModelFromDomain(p *inventory.ProductStock) *ProductStockModel {
	m := &ProductStockModel{}
	m.FromDomain(p)
	return m
}
