package inventory

import "github.com/clinic/backend/internal/domain/shared"

// Inventory errors
var (
	ErrProductNotFound         = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
	ErrContainerNotFound       = shared.NewDomainError("CONTAINER_NOT_FOUND", "Container not found")
	ErrDuplicateContainer      = shared.NewDomainError("DUPLICATE_CONTAINER", "Container id already exists on product")
	ErrInvalidQuantity         = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	ErrInvalidMovementType     = shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Invalid movement type")
	ErrInvalidContainerStatus  = shared.NewDomainError("INVALID_CONTAINER_STATUS", "Container status must be full, partial or empty")
	ErrContainerStatusRequired = shared.NewDomainError("CONTAINER_STATUS_REQUIRED", "Inbound movements on a container-tracked product need a container status")
	ErrNotContainerTracked     = shared.NewDomainError("NOT_CONTAINER_TRACKED", "Product does not track containers")
	ErrDuplicateMovement       = shared.NewDomainError("DUPLICATE_MOVEMENT", "Movement already recorded for this reference")
	ErrUnitNotFound            = shared.NewDomainError("UNIT_NOT_FOUND", "Unit of measurement not found")
)
