package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StaffIDHeader names the till operator on point-of-sale requests
const StaffIDHeader = "X-Staff-ID"

// MaxStaffIDLength bounds the staff id copied onto spans
const MaxStaffIDLength = 64

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "clinic-inventory",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin middleware that opens one server span
// per request, named "METHOD route".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector copies the request id and staff id onto the
// request span. It must run after TracingWithConfig and RequestID.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := GetRequestID(c); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if staffID := c.GetHeader(StaffIDHeader); staffID != "" && len(staffID) <= MaxStaffIDLength {
				span.SetAttributes(attribute.String("staff_id", staffID))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the request span as failed for 4xx and 5xx responses.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
