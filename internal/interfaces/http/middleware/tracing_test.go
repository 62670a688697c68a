package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs a recording tracer provider for the test.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func newTracedRouter(status int) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector(), SpanErrorMarker())
	router.POST("/products/:id/deduct-partial", func(c *gin.Context) {
		c.JSON(status, gin.H{"success": status < 400})
	})
	return router
}

func findSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RouteSpanWithAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	router := newTracedRouter(http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/products/abc/deduct-partial", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(StaffIDHeader, "staff-9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	span := findSpan(t, sr, "POST /products/:id/deduct-partial")

	requestID, ok := spanAttr(span, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-123", requestID.AsString())

	staffID, ok := spanAttr(span, "staff_id")
	require.True(t, ok)
	assert.Equal(t, "staff-9", staffID.AsString())

	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status      int
		description string
	}{
		{http.StatusNotFound, "Not Found"},
		{http.StatusConflict, "Conflict"},
		{http.StatusUnprocessableEntity, "Unprocessable Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			sr := setupTestTracer(t)
			router := newTracedRouter(tt.status)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/products/abc/deduct-partial", nil))
			require.Equal(t, tt.status, w.Code)

			span := findSpan(t, sr, "POST /products/:id/deduct-partial")
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.description, span.Status().Description)
		})
	}
}
