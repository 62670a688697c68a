package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository implements the append-only movement ledger.
// It has no update or delete.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append inserts a movement
func (r *GormMovementRepository) Append(ctx context.Context, m *inventory.InventoryMovement) error {
	if err := r.db.WithContext(ctx).Create(models.InventoryMovementModelFromDomain(m)).Error; err != nil {
		return fmt.Errorf("append movement %s: %w", m.ID, err)
	}
	return nil
}

// FindByID finds a movement by its ID
func (r *GormMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryMovement, error) {
	var model models.InventoryMovementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find movement %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindByProduct pages through the movements of a product ordered by creation time
func (r *GormMovementRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]inventory.InventoryMovement, int64, error) {
	byProduct := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.InventoryMovementModel{}).
			Where("product_id = ?", productID)
	}

	var total int64
	if err := byProduct().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count movements of %s: %w", productID, err)
	}

	var rows []models.InventoryMovementModel
	err := byProduct().
		Order("created_at " + orderDirection(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("find movements of %s: %w", productID, err)
	}
	return models.MovementsToDomain(rows), total, nil
}

// FindByReference lists the movements recorded for an external reference, oldest first
func (r *GormMovementRepository) FindByReference(ctx context.Context, reference string) ([]inventory.InventoryMovement, error) {
	var rows []models.InventoryMovementModel
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find movements for reference %q: %w", reference, err)
	}
	return models.MovementsToDomain(rows), nil
}

// ExistsForReference checks the (reference, product, type) compound key
func (r *GormMovementRepository) ExistsForReference(ctx context.Context, reference string, productID uuid.UUID, movementType inventory.MovementType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryMovementModel{}).
		Where("reference = ? AND product_id = ? AND movement_type = ?", reference, productID, string(movementType)).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check movement reference %q: %w", reference, err)
	}
	return count > 0, nil
}

// orderDirection whitelists the sort direction
func orderDirection(dir string) string {
	if strings.EqualFold(dir, "asc") {
		return "ASC"
	}
	return "DESC"
}

var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
