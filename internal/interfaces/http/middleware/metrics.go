package middleware

import (
	"time"

	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sizeBuckets := []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  sizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	responseSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  sizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestSize:     requestSize,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics returns a Gin middleware that collects request count, latency,
// body sizes and in-flight requests, labelled by route pattern.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter returns HTTP metrics middleware using an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passthrough
	}
	return metrics.handle
}

func passthrough(c *gin.Context) {
	c.Next()
}

func (m *httpMetrics) handle(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()
	requestSize := c.Request.ContentLength

	m.activeRequests.Add(ctx, 1)
	c.Next()
	m.activeRequests.Add(ctx, -1)

	// FullPath keeps cardinality bounded; unmatched routes share one label.
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	routeAttrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	m.requestTotal.Inc(ctx, append(routeAttrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
	m.requestDuration.RecordDuration(ctx, time.Since(start), routeAttrs...)
	if requestSize > 0 {
		m.requestSize.Record(ctx, float64(requestSize), routeAttrs...)
	}
	if size := c.Writer.Size(); size > 0 {
		m.responseSize.Record(ctx, float64(size), routeAttrs...)
	}
}
