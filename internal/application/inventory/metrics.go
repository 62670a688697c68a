package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Stock mutation paths used as metric labels
const (
	PathContainer = "container"
	PathAtomic    = "atomic"
	PathNoop      = "noop"
)

// StockMetrics receives counters from the stock services.
// The telemetry package provides the OpenTelemetry implementation.
type StockMetrics interface {
	RecordMutation(ctx context.Context, operation string, err error)
	RecordConflict(ctx context.Context, operation string)
	RecordContainerOpened(ctx context.Context, productID uuid.UUID)
	RecordOversold(ctx context.Context, productID uuid.UUID)
	RecordMovement(ctx context.Context, movementType, path string)
}

type noopStockMetrics struct{}

func (noopStockMetrics) RecordMutation(context.Context, string, error) {}
func (noopStockMetrics) RecordConflict(context.Context, string) {}
func (noopStockMetrics) RecordContainerOpened(context.Context, uuid.UUID) {}
func (noopStockMetrics) RecordOversold(context.Context, uuid.UUID) {}
func (noopStockMetrics) RecordMovement(context.Context, string, string) {}
