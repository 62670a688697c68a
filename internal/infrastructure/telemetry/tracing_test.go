package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "stock", "deduct_partial",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, "p-1"))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrContainerID, "BOTTLE_001",
		telemetry.SpanAttrRetryAttempts, 2,
		42, "ignored",
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	assert.NotEmpty(t, telemetry.GetSpanID(ctx))
	telemetry.SetOK(span)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "stock.deduct_partial", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "p-1", attrs["product_id"])
	assert.Equal(t, "BOTTLE_001", attrs["container_id"])
	assert.Equal(t, "2", attrs["retry_attempts"])
	assert.Len(t, attrs, 3)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "movement.record_movements")
	telemetry.RecordError(span, errors.New("version conflict"))
	telemetry.RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "version conflict", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "stock.deduct_partial")
	telemetry.AddEvent(span, "container_opened", telemetry.SpanAttrContainerID, "BOTTLE_002")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "container_opened", events[0].Name)
	assert.Equal(t, "BOTTLE_002", attrMap(events[0].Attributes)["container_id"])
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())

	_, err = telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true}, zap.NewNop())
	assert.Error(t, err)
}
