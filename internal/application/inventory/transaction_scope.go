package inventory

import (
	"context"

	"github.com/clinic/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// All repository operations made inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
//
//   - ProductRepo: product stock, mutated through SaveWithLock or ApplyStockDelta.
//   - MovementRepo: the append-only ledger.
//   - UnitRepo: read-only unit lookups used for quantity conversion.
type TransactionalRepositories interface {
	ProductRepo() inventory.ProductStockRepository
	MovementRepo() inventory.MovementRepository
	UnitRepo() inventory.UnitRepository
}

// NoOpTransactionScope runs functions directly against the given repositories.
// Useful for tests and for stores without transaction support.
type NoOpTransactionScope struct {
	productRepo  inventory.ProductStockRepository
	movementRepo inventory.MovementRepository
	unitRepo     inventory.UnitRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	productRepo inventory.ProductStockRepository,
	movementRepo inventory.MovementRepository,
	unitRepo inventory.UnitRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		unitRepo:     unitRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ProductRepo returns the product stock repository.
func (s *NoOpTransactionScope) ProductRepo() inventory.ProductStockRepository {
	return s.productRepo
}

// MovementRepo returns the movement repository.
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository {
	return s.movementRepo
}

// UnitRepo returns the unit repository.
func (s *NoOpTransactionScope) UnitRepo() inventory.UnitRepository {
	return s.unitRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
