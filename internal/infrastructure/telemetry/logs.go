package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds OTLP log export configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider owns the OTLP log pipeline. It is inert when logs are disabled.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
}

// NewLoggerProvider builds a batching OTLP log pipeline and installs it globally.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Log export disabled")
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("Log exporter started", zap.String("collector_endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

// Shutdown flushes buffered records and closes the exporter.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	lp.logger.Info("Log exporter stopped")
	return nil
}

// IsEnabled reports whether log records are exported.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp != nil && lp.provider != nil
}

// ZapBridgeConfig configures the zap core that forwards entries to OTLP.
type ZapBridgeConfig struct {
	ServiceName    string
	LoggerProvider *LoggerProvider
	Level          zapcore.Level
}

// NewZapOTELCore returns a core forwarding entries at or above cfg.Level to the
// OTLP pipeline. It is a no-op core when log export is disabled.
func NewZapOTELCore(cfg ZapBridgeConfig) zapcore.Core {
	if !cfg.LoggerProvider.IsEnabled() {
		return zapcore.NewNopCore()
	}

	core := otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(cfg.LoggerProvider.provider))
	// otelzap has no minimum level of its own
	filtered, err := zapcore.NewIncreaseLevelCore(core, cfg.Level)
	if err != nil {
		return core
	}
	return filtered
}
