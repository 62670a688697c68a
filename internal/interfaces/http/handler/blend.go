package handler

import (
	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// BlendHandler records ingredient consumption for blends and bundles
type BlendHandler struct {
	BaseHandler
	blendService *inventoryapp.BlendService
}

// NewBlendHandler creates a new BlendHandler
func NewBlendHandler(blendService *inventoryapp.BlendService) *BlendHandler {
	return &BlendHandler{blendService: blendService}
}

// ConsumeBlend converts and records every ingredient of a blend atomically.
// POST /blends/consume
func (h *BlendHandler) ConsumeBlend(c *gin.Context) {
	var req inventoryapp.ConsumeBlendRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = staffID(c)
	}

	resp, err := h.blendService.ConsumeBlend(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}
