package handler

import (
	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// StockHandler exposes container-aware stock operations
type StockHandler struct {
	BaseHandler
	stockService *inventoryapp.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *inventoryapp.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

// ReorderListQuery pages the below-reorder-point listing
type ReorderListQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// CreateProduct registers a product with its container settings.
// POST /products
func (h *StockHandler) CreateProduct(c *gin.Context) {
	var req inventoryapp.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	view, err := h.stockService.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// GetStock returns the current stock state of a product.
// GET /products/:id/stock
func (h *StockHandler) GetStock(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.stockService.GetStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ListBelowReorderPoint lists products whose stock dropped to or under their reorder point.
// GET /reorder-alerts
func (h *StockHandler) ListBelowReorderPoint(c *gin.Context) {
	var q ReorderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := shared.DefaultFilter()
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}

	views, err := h.stockService.ListBelowReorderPoint(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// DeductPartial sells a measured quantity out of an opened container.
// POST /products/:id/deduct-partial
func (h *StockHandler) DeductPartial(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.DeductPartialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = staffID(c)
	}

	view, err := h.stockService.DeductPartial(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// DeductFull sells one sealed container.
// POST /products/:id/deduct-full
func (h *StockHandler) DeductFull(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.stockService.DeductFull(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ReplenishPartial puts a tracked, partly used container back into stock.
// POST /products/:id/replenish-partial
func (h *StockHandler) ReplenishPartial(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ReplenishPartialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	view, err := h.stockService.ReplenishPartial(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ReplenishFull receives sealed containers.
// POST /products/:id/replenish-full
func (h *StockHandler) ReplenishFull(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ReplenishFullRequest
	if !h.BindJSON(c, &req) {
		return
	}

	view, err := h.stockService.ReplenishFull(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}
