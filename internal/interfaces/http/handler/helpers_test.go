package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// envelope mirrors dto.Response with the payload left raw for typed decoding
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type testAPI struct {
	t        *testing.T
	router   *gin.Engine
	products *persistence.GormProductStockRepository
	units    *persistence.GormUnitRepository
}

// newTestAPI wires the real services over a private in-memory sqlite database
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zaptest.NewLogger(t)

	db, err := persistence.Open(sqlite.Open("file::memory:"),
		&config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1},
		persistence.WithLogger(logger.NewGormLogger(log, gormlogger.Warn)),
	)
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })

	products := persistence.NewGormProductStockRepository(db.DB)
	movements := persistence.NewGormMovementRepository(db.DB)
	engine := inventory.NewStockEngine()

	stockSvc := inventoryapp.NewStockService(products, engine, log)
	movementSvc := inventoryapp.NewMovementService(
		persistence.NewGormTransactionScope(db.DB),
		movements,
		inventoryapp.NewMovementApplier(engine, log),
		log,
	)
	blendSvc := inventoryapp.NewBlendService(products, nil, movementSvc, log)

	stock := NewStockHandler(stockSvc)
	movement := NewMovementHandler(movementSvc)
	blend := NewBlendHandler(blendSvc)

	router := gin.New()
	router.Use(middleware.RequestID(), logger.GinMiddleware(log))
	api := router.Group("/api/v1")
	api.POST("/products", stock.CreateProduct)
	api.GET("/products/:id/stock", stock.GetStock)
	api.POST("/products/:id/deduct-partial", stock.DeductPartial)
	api.POST("/products/:id/deduct-full", stock.DeductFull)
	api.POST("/products/:id/replenish-partial", stock.ReplenishPartial)
	api.POST("/products/:id/replenish-full", stock.ReplenishFull)
	api.GET("/products/:id/movements", movement.ListByProduct)
	api.GET("/reorder-alerts", stock.ListBelowReorderPoint)
	api.POST("/movements", movement.RecordMovement)
	api.GET("/movements", movement.ListByReference)
	api.GET("/movements/:id", movement.GetMovement)
	api.POST("/blends/consume", blend.ConsumeBlend)

	return &testAPI{
		t:        t,
		router:   router,
		products: products,
		units:    persistence.NewGormUnitRepository(db.DB),
	}
}

// do sends a request; body may be nil, a string or any JSON-encodable value
func (a *testAPI) do(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// createOil registers a 100 ml container product with the given sealed count
func (a *testAPI) createOil(full int) inventoryapp.ProductStockView {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/v1/products", map[string]any{
		"name":               "Lavender oil",
		"base_unit":          "ml",
		"container_capacity": "100",
		"full_containers":    full,
		"reorder_point":      "150",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[inventoryapp.ProductStockView](a.t, env)
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
