package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for identified domain records
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
}

// BaseEntity provides the identity and timestamps shared by ledger records
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// NewBaseEntityAt creates a base entity with a generated ID stamped at now.
func NewBaseEntityAt(now time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
