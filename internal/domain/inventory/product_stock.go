package inventory

import (
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStock is the stock state of a single product.
//
// A container-tracked product keeps its stock in sealed and opened containers;
// CurrentStock and AvailableStock are denormalized copies of TotalStock and
// are kept in step by StockEngine. An untracked product has no containers and
// its counters are moved directly by atomic deltas.
type ProductStock struct {
	ID                uuid.UUID
	Name              string
	BaseUnit          string
	ContainerTracked  bool
	ContainerCapacity decimal.Decimal
	FullContainers    int
	PartialContainers []Container
	CurrentStock      decimal.Decimal
	AvailableStock    decimal.Decimal
	ReorderPoint      decimal.Decimal
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewProductStock creates the stock record of a product holding fullContainers sealed containers.
// The product is container-tracked when containerCapacity is positive.
func NewProductStock(name, baseUnit string, containerCapacity decimal.Decimal, fullContainers int) (*ProductStock, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if containerCapacity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Container capacity cannot be negative")
	}
	if fullContainers < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Initial container count cannot be negative")
	}
	if baseUnit == "" {
		baseUnit = "unit"
	}

	now := time.Now()
	p := &ProductStock{
		ID:                uuid.New(),
		Name:              name,
		BaseUnit:          baseUnit,
		ContainerTracked:  containerCapacity.IsPositive(),
		ContainerCapacity: containerCapacity,
		FullContainers:    fullContainers,
		PartialContainers: make([]Container, 0),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.recompute()
	return p, nil
}

// NewUntrackedProductStock creates a product counted in base units only, starting with onHand
func NewUntrackedProductStock(name, baseUnit string, onHand decimal.Decimal) (*ProductStock, error) {
	if onHand.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Initial stock cannot be negative")
	}
	p, err := NewProductStock(name, baseUnit, decimal.Zero, 0)
	if err != nil {
		return nil, err
	}
	p.CurrentStock = onHand
	p.AvailableStock = onHand
	return p, nil
}

// TotalStock returns full*capacity plus the positive remainder of every partial container.
func (p *ProductStock) TotalStock() decimal.Decimal {
	total := p.ContainerCapacity.Mul(decimal.NewFromInt(int64(p.FullContainers)))
	for i := range p.PartialContainers {
		total = total.Add(p.PartialContainers[i].Contribution())
	}
	return total
}

// IsConsistent reports whether the persisted aggregates match the container state.
// Untracked products only need matching counters.
func (p *ProductStock) IsConsistent() bool {
	if !p.ContainerTracked {
		return p.CurrentStock.Equal(p.AvailableStock)
	}
	total := p.TotalStock()
	return p.CurrentStock.Equal(total) && p.AvailableStock.Equal(total)
}

// IsBelowReorderPoint reports whether a restock signal should be raised
func (p *ProductStock) IsBelowReorderPoint() bool {
	return p.ReorderPoint.IsPositive() && p.CurrentStock.LessThanOrEqual(p.ReorderPoint)
}

// FindContainer returns the index of the container with the given id, or -1
func (p *ProductStock) FindContainer(containerID string) int {
	for i := range p.PartialContainers {
		if p.PartialContainers[i].ID == containerID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy
func (p *ProductStock) Clone() *ProductStock {
	out := *p
	out.PartialContainers = make([]Container, len(p.PartialContainers))
	for i := range p.PartialContainers {
		out.PartialContainers[i] = p.PartialContainers[i].clone()
	}
	return &out
}

func (p *ProductStock) recompute() {
	total := p.TotalStock()
	p.CurrentStock = total
	p.AvailableStock = total
}
