package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/domain/shared/service"
	"github.com/clinic/backend/internal/infrastructure/cache"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/event"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/clinic/backend/internal/infrastructure/scheduler"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/clinic/backend/internal/interfaces/http/handler"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/clinic/backend/internal/interfaces/http/router"
	"github.com/clinic/backend/internal/interfaces/messaging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers are no-ops unless enabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	// Rebuild the logger with the OTEL bridge core attached
	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: loggerProvider,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting clinic inventory service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileAlloc:    true,
	}, log)
	if err != nil {
		log.Warn("Profiler disabled", zap.Error(err))
	} else if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles disabled", zap.Error(err))
		}
	}

	// Database with zap-backed GORM logger and query instrumentation
	dbInstrumentation, err := telemetry.NewDBInstrumentation(
		meterProvider.Meter("clinic-inventory/db"),
		telemetry.DBConfig{
			TracingEnabled:     cfg.Telemetry.DBTraceEnabled,
			MetricsEnabled:     cfg.Telemetry.MetricsEnabled,
			LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize database instrumentation", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPlugins(dbInstrumentation),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")
	dbInstrumentation.StartPoolStatsCollection(ctx)

	// Repositories
	productRepo := persistence.NewGormProductStockRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	unitRepo := persistence.NewGormUnitRepository(db.DB)

	converter := loadUnitGraph(ctx, unitRepo, log)

	// Services
	engine := inventory.NewStockEngine()
	stockService := inventoryapp.NewStockService(productRepo, engine, log)
	stockService.SetMaxRetries(cfg.Stock.MaxRetries)
	movementService := inventoryapp.NewMovementService(
		persistence.NewGormTransactionScope(db.DB),
		movementRepo,
		inventoryapp.NewMovementApplier(engine, log),
		log,
	)
	movementService.SetMaxRetries(cfg.Stock.MaxRetries)
	blendService := inventoryapp.NewBlendService(productRepo, converter, movementService, log)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	movementService.SetIdempotencyStore(idempotencyStore, shared.IdempotencyConfig{
		Enabled: cfg.Movement.DedupEnabled,
		TTL:     cfg.Movement.DedupTTL,
	})

	stockMetrics, err := telemetry.NewStockMetrics(telemetry.StockMetricsConfig{
		Meter:         meterProvider.Meter("clinic-inventory/stock"),
		Logger:        log,
		LevelProvider: productRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize stock metrics", zap.Error(err))
	}
	stockService.SetMetrics(stockMetrics)
	movementService.SetMetrics(stockMetrics)
	stockMetrics.StartPeriodicCollection(ctx)

	// Event bus: reorder alerts fire when stock drops to the reorder point
	eventBus := event.NewInMemoryEventBus(log)
	alertNotifier := inventoryapp.NewLoggingStockAlertNotifier(log)
	reorderHandler := inventoryapp.NewReorderAlertHandler(log).WithNotifier(alertNotifier)
	eventBus.Subscribe(reorderHandler)
	log.Info("Event handlers registered", zap.Strings("reorder_alert_events", reorderHandler.EventTypes()))

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	stockService.SetEventPublisher(eventBus)
	movementService.SetEventPublisher(eventBus)

	var digest *scheduler.ReorderDigestTrigger
	if cfg.Scheduler.ReorderDigestEnabled {
		digestCfg := scheduler.DefaultReorderDigestConfig()
		digestCfg.Hour = cfg.Scheduler.ReorderDigestHour
		digestCfg.Minute = cfg.Scheduler.ReorderDigestMinute
		digest, err = scheduler.NewReorderDigestTrigger(digestCfg, productRepo, alertNotifier, log)
		if err != nil {
			log.Fatal("Failed to create reorder digest", zap.Error(err))
		}
		if err := digest.Start(ctx); err != nil {
			log.Fatal("Failed to start reorder digest", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpEngine := router.NewEngine(router.EngineConfig{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.MetricsEnabled,
		},
	}, router.Handlers{
		Stock:    handler.NewStockHandler(stockService),
		Movement: handler.NewMovementHandler(movementService),
		Blend:    handler.NewBlendHandler(blendService),
		Health: handler.NewHealthHandler(version, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Completed-transaction listener
	listenerCtx, stopListener := context.WithCancel(ctx)
	listenerDone := make(chan struct{})
	var listener *messaging.TransactionListener
	if cfg.Kafka.Enabled {
		listener = messaging.NewTransactionListener(
			messaging.NewReader(cfg.Kafka),
			movementService,
			log,
			messaging.WithIdempotency(idempotencyStore, cfg.Movement.DedupTTL),
		)
		go func() {
			defer close(listenerDone)
			if err := listener.Run(listenerCtx); err != nil {
				log.Error("Transaction listener stopped", zap.Error(err))
			}
		}()
		log.Info("Transaction listener started",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group_id", cfg.Kafka.GroupID),
		)
	} else {
		close(listenerDone)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	stopListener()
	<-listenerDone
	if listener != nil {
		if err := listener.Close(); err != nil {
			log.Error("Error closing kafka reader", zap.Error(err))
		}
	}

	if digest != nil {
		if err := digest.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping reorder digest", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	stockMetrics.Stop()
	dbInstrumentation.Stop()
	if err := idempotencyStore.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

type unitLister interface {
	FindAll(ctx context.Context) ([]inventory.UnitOfMeasurement, error)
}

// loadUnitGraph seeds the conversion graph with the units stored in the database.
// Units that fail to load leave the built-in rules in place.
func loadUnitGraph(ctx context.Context, units unitLister, log *zap.Logger) *service.UnitConversionService {
	converter := service.NewUnitConversionService()

	stored, err := units.FindAll(ctx)
	if err != nil {
		log.Warn("Failed to load units of measurement", zap.Error(err))
		return converter
	}

	loaded := 0
	for _, u := range stored {
		if u.ConversionRate == nil || u.BaseUnit == "" {
			continue
		}
		if err := converter.AddRule(u.Abbreviation, u.BaseUnit, *u.ConversionRate); err != nil {
			log.Warn("Skipping unit conversion rule",
				zap.String("unit", u.Abbreviation),
				zap.String("base_unit", u.BaseUnit),
				zap.Error(err),
			)
			continue
		}
		loaded++
	}
	log.Info("Unit conversion graph loaded", zap.Int("rules", loaded))
	return converter
}
