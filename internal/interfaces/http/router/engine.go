package router

import (
	"net/http"

	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/clinic/backend/internal/interfaces/http/handler"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles the HTTP handlers served by the engine
type Handlers struct {
	Stock    *handler.StockHandler
	Movement *handler.MovementHandler
	Blend    *handler.BlendHandler
	Health   *handler.HealthHandler
}

// EngineConfig configures the middleware chain
type EngineConfig struct {
	Logger  *zap.Logger
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	Metrics middleware.HTTPMetricsConfig
}

// NewEngine builds the gin engine with the full middleware chain and every
// /api/v1 route registered.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	}

	// RequestID precedes the logger so every access log line carries it.
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(cfg.Metrics),
	)
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
		engine.Use(middleware.CORSWithConfig(cors))
	}
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	r := NewRouter(engine)
	for _, group := range apiGroups(h) {
		r.Register(group)
	}
	r.Setup()

	return engine
}

func apiGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.Health != nil {
		groups = append(groups, NewDomainGroup("health", "/health").
			GET("", h.Health.Health))
	}

	if h.Stock != nil {
		products := NewDomainGroup("products", "/products").
			POST("", h.Stock.CreateProduct).
			GET("/:id/stock", h.Stock.GetStock).
			POST("/:id/deduct-partial", h.Stock.DeductPartial).
			POST("/:id/deduct-full", h.Stock.DeductFull).
			POST("/:id/replenish-partial", h.Stock.ReplenishPartial).
			POST("/:id/replenish-full", h.Stock.ReplenishFull)
		if h.Movement != nil {
			products.GET("/:id/movements", h.Movement.ListByProduct)
		}
		groups = append(groups, products,
			NewDomainGroup("reorder-alerts", "/reorder-alerts").
				GET("", h.Stock.ListBelowReorderPoint))
	}

	if h.Movement != nil {
		groups = append(groups, NewDomainGroup("movements", "/movements").
			POST("", h.Movement.RecordMovement).
			GET("", h.Movement.ListByReference).
			GET("/:id", h.Movement.GetMovement))
	}

	if h.Blend != nil {
		groups = append(groups, NewDomainGroup("blends", "/blends").
			POST("/consume", h.Blend.ConsumeBlend))
	}

	return groups
}
