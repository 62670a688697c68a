package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUnitRepository implements inventory.UnitRepository using GORM
type GormUnitRepository struct {
	db *gorm.DB
}

// NewGormUnitRepository creates a new GormUnitRepository
func NewGormUnitRepository(db *gorm.DB) *GormUnitRepository {
	return &GormUnitRepository{db: db}
}

// FindByID finds a unit by its ID
func (r *GormUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.UnitOfMeasurement, error) {
	var model models.UnitOfMeasurementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrUnitNotFound
		}
		return nil, fmt.Errorf("find unit %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a unit
func (r *GormUnitRepository) Save(ctx context.Context, u *inventory.UnitOfMeasurement) error {
	model := &models.UnitOfMeasurementModel{}
	model.FromDomain(u)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "abbreviation", "base_unit", "conversion_rate", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("save unit %s: %w", u.Abbreviation, err)
	}
	return nil
}

// FindAll lists every unit ordered by abbreviation
func (r *GormUnitRepository) FindAll(ctx context.Context) ([]inventory.UnitOfMeasurement, error) {
	var rows []models.UnitOfMeasurementModel
	if err := r.db.WithContext(ctx).Order("abbreviation ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	result := make([]inventory.UnitOfMeasurement, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

var _ inventory.UnitRepository = (*GormUnitRepository)(nil)
