package persistence

import (
	"context"

	appinv "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// The movement append and the stock mutation it causes commit together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction, rolling back when it returns an error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ProductRepo() inventory.ProductStockRepository {
	return NewGormProductStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) MovementRepo() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) UnitRepo() inventory.UnitRepository {
	return NewGormUnitRepository(r.tx)
}

var (
	_ appinv.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
