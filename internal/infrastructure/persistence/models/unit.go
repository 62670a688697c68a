package models

import (
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitOfMeasurementModel is the persistence model of units_of_measurement
type UnitOfMeasurementModel struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name           string           `gorm:"type:varchar(100);not null"`
	Abbreviation   string           `gorm:"type:varchar(32);not null;uniqueIndex"`
	BaseUnit       string           `gorm:"type:varchar(32);not null"`
	ConversionRate *decimal.Decimal `gorm:"type:decimal(18,6)"`
	CreatedAt      time.Time        `gorm:"not null"`
	UpdatedAt      time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnitOfMeasurementModel) TableName() string {
	return "units_of_measurement"
}

// ToDomain converts the persistence model to a domain unit
func (m *UnitOfMeasurementModel) ToDomain() *inventory.UnitOfMeasurement {
	return &inventory.UnitOfMeasurement{
		ID:             m.ID,
		Name:           m.Name,
		Abbreviation:   m.Abbreviation,
		BaseUnit:       m.BaseUnit,
		ConversionRate: m.ConversionRate,
	}
}

// FromDomain populates the persistence model from a domain unit
func (m *UnitOfMeasurementModel) FromDomain(u *inventory.UnitOfMeasurement) {
	m.ID = u.ID
	m.Name = u.Name
	m.Abbreviation = u.Abbreviation
	m.BaseUnit = u.BaseUnit
	m.ConversionRate = u.ConversionRate
}
