package handler

import (
	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// MovementHandler exposes the inventory movement ledger
type MovementHandler struct {
	BaseHandler
	movementService *inventoryapp.MovementService
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(movementService *inventoryapp.MovementService) *MovementHandler {
	return &MovementHandler{movementService: movementService}
}

// ReferenceQuery selects movements by external reference
type ReferenceQuery struct {
	Reference string `form:"reference" binding:"required,max=100"`
}

// RecordMovement appends one movement and applies it to stock.
// POST /movements
func (h *MovementHandler) RecordMovement(c *gin.Context) {
	var req inventoryapp.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = staffID(c)
	}

	resp, err := h.movementService.RecordMovement(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetMovement returns one ledger entry.
// GET /movements/:id
func (h *MovementHandler) GetMovement(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.movementService.GetMovement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListByReference returns the movements recorded for a sale or blend reference.
// GET /movements?reference=
func (h *MovementHandler) ListByReference(c *gin.Context) {
	var q ReferenceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	movements, err := h.movementService.ListByReference(c.Request.Context(), q.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}

// ListByProduct pages through one product's ledger.
// GET /products/:id/movements
func (h *MovementHandler) ListByProduct(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var filter inventoryapp.MovementListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	movements, total, err := h.movementService.ListByProduct(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, movements, total, page, pageSize)
}
