package inventory

import (
	"context"
	"fmt"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/domain/shared/service"
	"go.uber.org/zap"
)

// quantityScale is the number of decimal places stock quantities are stored with
const quantityScale = 4

// BlendService records the ingredients consumed by blends and bundles.
// Every ingredient is converted to its product's base unit before anything is
// written, so a conversion failure leaves stock and ledger untouched.
type BlendService struct {
	productRepo inventory.ProductStockRepository
	converter   *service.UnitConversionService
	movements   *MovementService
	logger      *zap.Logger
}

// NewBlendService creates a new BlendService
func NewBlendService(
	productRepo inventory.ProductStockRepository,
	converter *service.UnitConversionService,
	movements *MovementService,
	logger *zap.Logger,
) *BlendService {
	if converter == nil {
		converter = service.NewUnitConversionService()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlendService{
		productRepo: productRepo,
		converter:   converter,
		movements:   movements,
		logger:      logger,
	}
}

// ConsumeBlend converts and records every ingredient of a blend in one transaction
func (s *BlendService) ConsumeBlend(ctx context.Context, req ConsumeBlendRequest) (*ConsumeBlendResponse, error) {
	movementType := inventory.MovementType(req.MovementType)
	if !movementType.IsBlendConsumption() {
		return nil, shared.NewDomainError(inventory.ErrInvalidMovementType.Code,
			fmt.Sprintf("movement type %q does not consume blend ingredients", req.MovementType))
	}
	if len(req.Ingredients) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "A blend needs at least one ingredient")
	}

	reqs := make([]RecordMovementRequest, len(req.Ingredients))
	for i, ing := range req.Ingredients {
		if !ing.Quantity.IsPositive() {
			return nil, inventory.ErrInvalidQuantity
		}
		product, err := s.productRepo.FindByID(ctx, ing.ProductID)
		if err != nil {
			return nil, err
		}
		converted, err := s.converter.Convert(ing.Quantity, ing.Unit, product.BaseUnit)
		if err != nil {
			s.logger.Warn("blend ingredient conversion failed",
				zap.String("reference", req.Reference),
				zap.String("product_id", ing.ProductID.String()),
				zap.String("from_unit", ing.Unit),
				zap.String("to_unit", product.BaseUnit),
			)
			return nil, err
		}

		baseQuantity := converted.TargetQuantity.Round(quantityScale)
		if !baseQuantity.IsPositive() {
			return nil, shared.NewDomainError(service.ErrUnitConversionFailed.Code,
				fmt.Sprintf("%s %s is below the smallest recordable quantity of %s", ing.Quantity, ing.Unit, product.BaseUnit))
		}
		reqs[i] = RecordMovementRequest{
			ProductID:         ing.ProductID,
			MovementType:      req.MovementType,
			Quantity:          ing.Quantity,
			ConvertedQuantity: &baseQuantity,
			Reference:         req.Reference,
			CreatedBy:         req.CreatedBy,
			Container:         ing.Container,
		}
	}

	recorded, err := s.movements.RecordMovements(ctx, reqs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("blend consumed",
		zap.String("reference", req.Reference),
		zap.String("movement_type", req.MovementType),
		zap.Int("ingredients", len(recorded)),
	)
	return &ConsumeBlendResponse{Reference: req.Reference, Movements: recorded}, nil
}
