package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher collects published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// memProductRepo is a ProductStockRepository with the same compare-and-swap
// semantics as the SQL implementation.
type memProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*inventory.ProductStock
}

func newMemProductRepo(products ...*inventory.ProductStock) *memProductRepo {
	r := &memProductRepo{products: make(map[uuid.UUID]*inventory.ProductStock)}
	for _, p := range products {
		r.products[p.ID] = p.Clone()
	}
	return r
}

func (r *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (r *memProductRepo) Create(_ context.Context, p *inventory.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.products[p.ID] = p.Clone()
	return nil
}

func (r *memProductRepo) SaveWithLock(_ context.Context, p *inventory.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.products[p.ID] = p.Clone()
	return nil
}

func (r *memProductRepo) ApplyStockDelta(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if p.ContainerTracked {
		return inventory.ErrContainerStatusRequired
	}
	p.CurrentStock = p.CurrentStock.Add(delta)
	p.AvailableStock = p.AvailableStock.Add(delta)
	p.Version++
	return nil
}

func (r *memProductRepo) FindBelowReorderPoint(_ context.Context, _ shared.Filter) ([]inventory.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.ProductStock, 0)
	for _, p := range r.products {
		if p.IsBelowReorderPoint() {
			out = append(out, *p.Clone())
		}
	}
	return out, nil
}

func (r *memProductRepo) get(id uuid.UUID) *inventory.ProductStock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Clone()
}

type memMovementRepo struct {
	mu        sync.Mutex
	movements []inventory.InventoryMovement
}

func (r *memMovementRepo) Append(_ context.Context, m *inventory.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *memMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.InventoryMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		if r.movements[i].ID == id {
			m := r.movements[i]
			return &m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memMovementRepo) FindByProduct(_ context.Context, productID uuid.UUID, _ shared.Filter) ([]inventory.InventoryMovement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.InventoryMovement, 0)
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memMovementRepo) FindByReference(_ context.Context, reference string) ([]inventory.InventoryMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.InventoryMovement, 0)
	for _, m := range r.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) ExistsForReference(_ context.Context, reference string, productID uuid.UUID, movementType inventory.MovementType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.Reference == reference && m.ProductID == productID && m.MovementType == movementType {
			return true, nil
		}
	}
	return false, nil
}

func (r *memMovementRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.movements)
}

type memUnitRepo struct {
	units map[uuid.UUID]*inventory.UnitOfMeasurement
}

func newMemUnitRepo(units ...*inventory.UnitOfMeasurement) *memUnitRepo {
	r := &memUnitRepo{units: make(map[uuid.UUID]*inventory.UnitOfMeasurement)}
	for _, u := range units {
		r.units[u.ID] = u
	}
	return r
}

func (r *memUnitRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.UnitOfMeasurement, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, inventory.ErrUnitNotFound
	}
	return u, nil
}

func (r *memUnitRepo) Save(_ context.Context, u *inventory.UnitOfMeasurement) error {
	r.units[u.ID] = u
	return nil
}

// MockProductStockRepository is a testify mock of ProductStockRepository
type MockProductStockRepository struct {
	mock.Mock
}

func (m *MockProductStockRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.ProductStock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.ProductStock), args.Error(1)
}

func (m *MockProductStockRepository) Create(ctx context.Context, p *inventory.ProductStock) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductStockRepository) SaveWithLock(ctx context.Context, p *inventory.ProductStock) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductStockRepository) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockProductStockRepository) FindBelowReorderPoint(ctx context.Context, filter shared.Filter) ([]inventory.ProductStock, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]inventory.ProductStock), args.Error(1)
}
