package inventory

import (
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DeductOptions controls a partial deduction
type DeductOptions struct {
	// ContainerID targets a specific container and bypasses FIFO selection
	ContainerID    string
	TransactionRef string
	UserID         string
}

// MutationResult describes what a StockEngine operation changed.
type MutationResult struct {
	// ContainerID is the container that was deducted or created, if any
	ContainerID string
	// OpenedContainer is set when a sealed container was opened
	OpenedContainer bool
	// Oversold is set when the affected container ended below zero
	Oversold bool
	Events   []shared.DomainEvent
}

// StockEngine applies deductions and replenishments to a ProductStock.
// It holds no state: every operation takes a product value and returns a new
// one, leaving the input untouched. Each operation bumps Version once so the
// result can be saved with a compare-and-swap on the previous version.
type StockEngine struct {
	now func() time.Time
}

// EngineOption configures a StockEngine
type EngineOption func(*StockEngine)

// WithClock overrides the engine's time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *StockEngine) {
		e.now = now
	}
}

// NewStockEngine creates a new StockEngine
func NewStockEngine(opts ...EngineOption) *StockEngine {
	e := &StockEngine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeductPartial removes quantity from one container.
//
// Without a target container the first container with a positive remainder is
// used. If there is none a sealed container is opened, and if no sealed
// containers are left a new container is created at zero and driven negative.
// Overselling is never rejected.
func (e *StockEngine) DeductPartial(p *ProductStock, quantity decimal.Decimal, opts DeductOptions) (*ProductStock, *MutationResult, error) {
	if !quantity.IsPositive() {
		return nil, nil, ErrInvalidQuantity
	}

	now := e.now()
	next := p.Clone()
	result := &MutationResult{}

	idx := -1
	if opts.ContainerID != "" {
		idx = next.FindContainer(opts.ContainerID)
		if idx < 0 {
			return nil, nil, shared.NewDomainError(ErrContainerNotFound.Code,
				fmt.Sprintf("container %s not found on product %s", opts.ContainerID, p.ID))
		}
	} else {
		for i := range next.PartialContainers {
			if next.PartialContainers[i].IsDepletable() {
				idx = i
				break
			}
		}
	}

	if idx < 0 {
		opened := now
		c := Container{
			ID:          nextBottleID(next),
			Capacity:    next.ContainerCapacity,
			OpenedAt:    &opened,
			SaleHistory: make([]SaleRecord, 0, 1),
		}
		if next.FullContainers > 0 {
			next.FullContainers--
			c.Remaining = next.ContainerCapacity
			c.Status = ContainerStatusPartial
			result.OpenedContainer = true
		} else {
			c.Remaining = decimal.Zero
		}
		next.PartialContainers = append(next.PartialContainers, c)
		idx = len(next.PartialContainers) - 1
		if result.OpenedContainer {
			result.Events = append(result.Events, NewContainerOpenedEvent(next, c.ID, now))
		}
	}

	c := &next.PartialContainers[idx]
	c.Remaining = c.Remaining.Sub(quantity)
	c.refreshStatus()
	c.SaleHistory = append(c.SaleHistory, SaleRecord{
		TransactionRef: opts.TransactionRef,
		QuantitySold:   quantity,
		SoldBy:         opts.UserID,
		SoldAt:         now,
	})
	result.ContainerID = c.ID

	if c.Remaining.IsNegative() {
		result.Oversold = true
		result.Events = append(result.Events, NewContainerOversoldEvent(next, c, opts.TransactionRef, now))
	}

	e.finish(p, next, result, now)
	return next, result, nil
}

// DeductFull removes one sealed container. The count may go negative.
func (e *StockEngine) DeductFull(p *ProductStock) (*ProductStock, *MutationResult) {
	now := e.now()
	next := p.Clone()
	next.FullContainers--

	result := &MutationResult{}
	e.finish(p, next, result, now)
	return next, result
}

// ReplenishPartial adds a tracked container holding remaining base units.
// An empty containerID generates CONTAINER_<unix millis>.
func (e *StockEngine) ReplenishPartial(p *ProductStock, containerID string, remaining decimal.Decimal) (*ProductStock, *MutationResult, error) {
	if remaining.IsNegative() {
		return nil, nil, shared.NewDomainError(ErrInvalidQuantity.Code, "Remaining quantity cannot be negative")
	}

	now := e.now()
	next := p.Clone()
	if containerID == "" {
		containerID = fmt.Sprintf("CONTAINER_%d", now.UnixMilli())
		for suffix := 1; next.FindContainer(containerID) >= 0; suffix++ {
			containerID = fmt.Sprintf("CONTAINER_%d_%d", now.UnixMilli(), suffix)
		}
	} else if next.FindContainer(containerID) >= 0 {
		return nil, nil, shared.NewDomainError(ErrDuplicateContainer.Code,
			fmt.Sprintf("container %s already exists on product %s", containerID, p.ID))
	}

	c := Container{
		ID:          containerID,
		Remaining:   remaining,
		Capacity:    next.ContainerCapacity,
		SaleHistory: make([]SaleRecord, 0),
	}
	c.refreshStatus()
	next.PartialContainers = append(next.PartialContainers, c)

	result := &MutationResult{ContainerID: containerID}
	e.finish(p, next, result, now)
	return next, result, nil
}

// ReplenishFull adds count sealed containers
func (e *StockEngine) ReplenishFull(p *ProductStock, count int) (*ProductStock, *MutationResult, error) {
	if count <= 0 {
		return nil, nil, shared.NewDomainError(ErrInvalidQuantity.Code, "Container count must be positive")
	}

	now := e.now()
	next := p.Clone()
	next.FullContainers += count

	result := &MutationResult{}
	e.finish(p, next, result, now)
	return next, result, nil
}

// finish recomputes the aggregates, bumps the version and raises the
// reorder signal when the mutation crossed the threshold downwards.
func (e *StockEngine) finish(prev, next *ProductStock, result *MutationResult, now time.Time) {
	next.recompute()
	next.Version = prev.Version + 1
	next.UpdatedAt = now

	if next.IsBelowReorderPoint() && next.CurrentStock.LessThan(prev.CurrentStock) {
		result.Events = append(result.Events, NewStockBelowReorderPointEvent(next, now))
	}
}

func nextBottleID(p *ProductStock) string {
	for n := len(p.PartialContainers) + 1; ; n++ {
		id := fmt.Sprintf("BOTTLE_%03d", n)
		if p.FindContainer(id) < 0 {
			return id
		}
	}
}
