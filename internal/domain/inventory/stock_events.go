package inventory

import (
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeProductStock is the aggregate type carried by stock events
const AggregateTypeProductStock = "ProductStock"

// Event type constants
const (
	EventTypeContainerOpened        = "ContainerOpened"
	EventTypeContainerOversold      = "ContainerOversold"
	EventTypeStockBelowReorderPoint = "StockBelowReorderPoint"
)

// ContainerOpenedEvent is raised when a sealed container is opened to serve a sale
type ContainerOpenedEvent struct {
	shared.BaseDomainEvent
	ProductID      uuid.UUID `json:"product_id"`
	ContainerID    string    `json:"container_id"`
	FullContainers int       `json:"full_containers"`
}

// NewContainerOpenedEvent creates a new ContainerOpenedEvent
func NewContainerOpenedEvent(p *ProductStock, containerID string, at time.Time) *ContainerOpenedEvent {
	return &ContainerOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContainerOpened, AggregateTypeProductStock, p.ID, at),
		ProductID:       p.ID,
		ContainerID:     containerID,
		FullContainers:  p.FullContainers,
	}
}

// ContainerOversoldEvent is raised when a sale drives a container below zero.
// It is a diagnostic signal; the sale itself is accepted.
type ContainerOversoldEvent struct {
	shared.BaseDomainEvent
	ProductID      uuid.UUID       `json:"product_id"`
	ContainerID    string          `json:"container_id"`
	Remaining      decimal.Decimal `json:"remaining"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
}

// NewContainerOversoldEvent creates a new ContainerOversoldEvent
func NewContainerOversoldEvent(p *ProductStock, c *Container, transactionRef string, at time.Time) *ContainerOversoldEvent {
	return &ContainerOversoldEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContainerOversold, AggregateTypeProductStock, p.ID, at),
		ProductID:       p.ID,
		ContainerID:     c.ID,
		Remaining:       c.Remaining,
		TransactionRef:  transactionRef,
	}
}

// StockBelowReorderPointEvent is raised when current stock falls to or under the reorder point
type StockBelowReorderPointEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

// NewStockBelowReorderPointEvent creates a new StockBelowReorderPointEvent
func NewStockBelowReorderPointEvent(p *ProductStock, at time.Time) *StockBelowReorderPointEvent {
	return &StockBelowReorderPointEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowReorderPoint, AggregateTypeProductStock, p.ID, at),
		ProductID:       p.ID,
		ProductName:     p.Name,
		CurrentStock:    p.CurrentStock,
		ReorderPoint:    p.ReorderPoint,
	}
}
