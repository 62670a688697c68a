package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitOfMeasurement is a unit quantities can be entered in. ConversionRate is
// how many base units one of this unit holds; nil means the unit is already a base unit.
type UnitOfMeasurement struct {
	ID             uuid.UUID
	Name           string
	Abbreviation   string
	BaseUnit       string
	ConversionRate *decimal.Decimal
}

// ToBase converts quantity into base units, leaving it unchanged when no rate is set
func (u *UnitOfMeasurement) ToBase(quantity decimal.Decimal) decimal.Decimal {
	if u == nil || u.ConversionRate == nil || !u.ConversionRate.IsPositive() {
		return quantity
	}
	return quantity.Mul(*u.ConversionRate)
}
