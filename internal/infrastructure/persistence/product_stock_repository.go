package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const belowReorderPointCondition = "reorder_point > 0 AND current_stock <= reorder_point"

// GormProductStockRepository implements inventory.ProductStockRepository using GORM
type GormProductStockRepository struct {
	db *gorm.DB
}

// NewGormProductStockRepository creates a new GormProductStockRepository
func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

// FindByID loads the stock of a product
func (r *GormProductStockRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.ProductStock, error) {
	var model models.ProductStockModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new product stock record
func (r *GormProductStockRepository) Create(ctx context.Context, p *inventory.ProductStock) error {
	if err := r.db.WithContext(ctx).Create(models.ProductStockModelFromDomain(p)).Error; err != nil {
		return fmt.Errorf("create product %s: %w", p.ID, err)
	}
	return nil
}

// SaveWithLock writes the container state only while the stored version is
// still p.Version-1, the version the engine started from.
func (r *GormProductStockRepository) SaveWithLock(ctx context.Context, p *inventory.ProductStock) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductStockModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version-1).
		Updates(map[string]any{
			"full_containers":    p.FullContainers,
			"partial_containers": models.ContainerList(p.PartialContainers),
			"current_stock":      p.CurrentStock,
			"available_stock":    p.AvailableStock,
			"version":            p.Version,
			"updated_at":         p.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save product %s: %w", p.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ApplyStockDelta adds delta to current and available stock of an untracked
// product in one UPDATE. The version is bumped so writers holding a stale copy retry.
func (r *GormProductStockRepository) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductStockModel{}).
		Where("id = ? AND container_tracked = ?", id, false).
		Updates(map[string]any{
			"current_stock":   gorm.Expr("current_stock + ?", delta),
			"available_stock": gorm.Expr("available_stock + ?", delta),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("apply stock delta to %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.deltaRejected(ctx, id)
	}
	return nil
}

// deltaRejected explains why ApplyStockDelta matched no row
func (r *GormProductStockRepository) deltaRejected(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductStockModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("apply stock delta to %s: %w", id, err)
	}
	if count == 0 {
		return inventory.ErrProductNotFound
	}
	return inventory.ErrContainerStatusRequired
}

// FindBelowReorderPoint lists products at or under their reorder point, lowest stock first
func (r *GormProductStockRepository) FindBelowReorderPoint(ctx context.Context, filter shared.Filter) ([]inventory.ProductStock, error) {
	var rows []models.ProductStockModel
	err := r.db.WithContext(ctx).
		Where(belowReorderPointCondition).
		Order("current_stock ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find products below reorder point: %w", err)
	}

	result := make([]inventory.ProductStock, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// CountBelowReorderPoint counts products at or under their reorder point
func (r *GormProductStockRepository) CountBelowReorderPoint(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductStockModel{}).
		Where(belowReorderPointCondition).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count products below reorder point: %w", err)
	}
	return count, nil
}

var _ inventory.ProductStockRepository = (*GormProductStockRepository)(nil)
