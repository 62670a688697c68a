package handler

import (
	"net/http"
	"testing"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementHandler_RecordAndQuery(t *testing.T) {
	api := newTestAPI(t)
	oil := api.createOil(2)

	w, env := api.do(http.MethodPost, "/api/v1/movements", map[string]any{
		"product_id":    oil.ID,
		"movement_type": "sale",
		"quantity":      "12.5",
		"reference":     "TXN-200",
		"container":     map[string]any{"status": "partial"},
	}, "X-Staff-ID", "till-3")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	recorded := decodeData[inventoryapp.MovementResponse](t, env)
	assert.Equal(t, "sale", recorded.MovementType)
	assert.Equal(t, "till-3", recorded.CreatedBy)
	assert.Equal(t, "partial", recorded.ContainerStatus)
	assert.Equal(t, "ml", recorded.BaseUnit)
	assert.True(t, decimal.RequireFromString("12.5").Equal(recorded.ConvertedQuantity))

	t.Run("stock reflects the sale", func(t *testing.T) {
		_, env := api.do(http.MethodGet, "/api/v1/products/"+oil.ID.String()+"/stock", nil)
		view := decodeData[inventoryapp.ProductStockView](t, env)
		assert.True(t, decimal.RequireFromString("187.5").Equal(view.CurrentStock))
		require.Len(t, view.Containers.Partial, 1)
		assert.True(t, decimal.RequireFromString("87.5").Equal(view.Containers.Partial[0].Remaining))
	})

	t.Run("get by id", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/movements/"+recorded.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, recorded.ID, decodeData[inventoryapp.MovementResponse](t, env).ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/movements/"+uuid.NewString(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("by reference", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/movements?reference=TXN-200", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decodeData[[]inventoryapp.MovementResponse](t, env)
		require.Len(t, list, 1)
		assert.Equal(t, recorded.ID, list[0].ID)
	})

	t.Run("reference is required", func(t *testing.T) {
		w, _ := api.do(http.MethodGet, "/api/v1/movements", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMovementHandler_Rejections(t *testing.T) {
	api := newTestAPI(t)
	oil := api.createOil(1)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "unknown movement type",
			body:   map[string]any{"product_id": oil.ID, "movement_type": "theft", "quantity": "1"},
			status: http.StatusUnprocessableEntity,
			code:   "INVALID_MOVEMENT_TYPE",
		},
		{
			name:   "unknown product",
			body:   map[string]any{"product_id": uuid.New(), "movement_type": "sale", "quantity": "1"},
			status: http.StatusNotFound,
			code:   "PRODUCT_NOT_FOUND",
		},
		{
			name:   "bad container status",
			body:   map[string]any{"product_id": oil.ID, "movement_type": "sale", "quantity": "1", "container": map[string]any{"status": "sealed"}},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "inbound without container status on a tracked product",
			body:   map[string]any{"product_id": oil.ID, "movement_type": "adjustment", "quantity": "5"},
			status: http.StatusUnprocessableEntity,
			code:   "CONTAINER_STATUS_REQUIRED",
		},
		{
			name:   "negative quantity",
			body:   map[string]any{"product_id": oil.ID, "movement_type": "sale", "quantity": "-2"},
			status: http.StatusUnprocessableEntity,
			code:   "INVALID_QUANTITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := api.do(http.MethodPost, "/api/v1/movements", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestMovementHandler_ListByProduct(t *testing.T) {
	api := newTestAPI(t)
	oil := api.createOil(5)

	for range 3 {
		w, _ := api.do(http.MethodPost, "/api/v1/movements", map[string]any{
			"product_id": oil.ID, "movement_type": "sale", "quantity": "2",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := api.do(http.MethodGet, "/api/v1/products/"+oil.ID.String()+"/movements?page=1&page_size=2&order_dir=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
	assert.Len(t, decodeData[[]inventoryapp.MovementResponse](t, env), 2)

	w, _ = api.do(http.MethodGet, "/api/v1/products/"+oil.ID.String()+"/movements?order_dir=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
