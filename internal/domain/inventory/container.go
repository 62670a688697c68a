package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContainerStatus describes how much of a container is left
type ContainerStatus string

const (
	ContainerStatusFull     ContainerStatus = "full"
	ContainerStatusPartial  ContainerStatus = "partial"
	ContainerStatusEmpty    ContainerStatus = "empty"
	ContainerStatusOversold ContainerStatus = "oversold"
)

// String returns the string representation of ContainerStatus
func (s ContainerStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known value
func (s ContainerStatus) IsValid() bool {
	switch s {
	case ContainerStatusFull, ContainerStatusPartial, ContainerStatusEmpty, ContainerStatusOversold:
		return true
	}
	return false
}

// DeriveStatus computes the status a container with the given remaining
// quantity and capacity must carry.
func DeriveStatus(remaining, capacity decimal.Decimal) ContainerStatus {
	switch {
	case remaining.IsNegative():
		return ContainerStatusOversold
	case remaining.IsZero():
		return ContainerStatusEmpty
	case remaining.LessThan(capacity):
		return ContainerStatusPartial
	default:
		return ContainerStatusFull
	}
}

// SaleRecord is one audit entry on a container
type SaleRecord struct {
	TransactionRef string          `json:"transaction_ref,omitempty"`
	QuantitySold   decimal.Decimal `json:"quantity_sold"`
	SoldBy         string          `json:"sold_by,omitempty"`
	SoldAt         time.Time       `json:"sold_at"`
}

// Container is an opened unit of stock tracked individually. Containers are
// never removed from a product; empty ones stay for audit.
type Container struct {
	ID          string          `json:"id"`
	Remaining   decimal.Decimal `json:"remaining"`
	Capacity    decimal.Decimal `json:"capacity"`
	Status      ContainerStatus `json:"status"`
	OpenedAt    *time.Time      `json:"opened_at,omitempty"`
	SaleHistory []SaleRecord    `json:"sale_history"`
}

// IsDepletable reports whether FIFO selection may pick this container
func (c *Container) IsDepletable() bool {
	return c.Remaining.IsPositive()
}

// Contribution is what the container adds to the product's aggregate stock.
// Oversold containers contribute zero.
func (c *Container) Contribution() decimal.Decimal {
	if c.Remaining.IsPositive() {
		return c.Remaining
	}
	return decimal.Zero
}

func (c *Container) refreshStatus() {
	c.Status = DeriveStatus(c.Remaining, c.Capacity)
}

func (c Container) clone() Container {
	out := c
	if c.OpenedAt != nil {
		t := *c.OpenedAt
		out.OpenedAt = &t
	}
	if c.SaleHistory != nil {
		out.SaleHistory = make([]SaleRecord, len(c.SaleHistory))
		copy(out.SaleHistory, c.SaleHistory)
	}
	return out
}
