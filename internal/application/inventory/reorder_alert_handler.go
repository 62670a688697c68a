package inventory

import (
	"context"
	"fmt"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockAlert represents a restock signal for one product
type StockAlert struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	CurrentStock string `json:"current_stock"`
	ReorderPoint string `json:"reorder_point"`
	AlertType    string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// StockAlertNotifier sends stock alerts to staff
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// ReorderAlertHandler handles StockBelowReorderPoint events
type ReorderAlertHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewReorderAlertHandler creates a new handler for reorder point events
func NewReorderAlertHandler(logger *zap.Logger) *ReorderAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReorderAlertHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *ReorderAlertHandler) WithNotifier(notifier StockAlertNotifier) *ReorderAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *ReorderAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockBelowReorderPoint}
}

// Handle processes a StockBelowReorderPointEvent
func (h *ReorderAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*inventory.StockBelowReorderPointEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockBelowReorderPoint, event.EventType())
	}

	alertType := "low_stock"
	if !e.CurrentStock.IsPositive() {
		alertType = "out_of_stock"
	}
	alert := StockAlert{
		ProductID:    e.ProductID.String(),
		ProductName:  e.ProductName,
		CurrentStock: e.CurrentStock.String(),
		ReorderPoint: e.ReorderPoint.String(),
		AlertType:    alertType,
	}

	h.logger.Warn("stock at or below reorder point",
		zap.String("product_id", alert.ProductID),
		zap.String("product_name", alert.ProductName),
		zap.String("current_stock", alert.CurrentStock),
		zap.String("reorder_point", alert.ReorderPoint),
	)

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			// Notification failure does not fail event handling.
			h.logger.Error("failed to send stock alert", zap.String("product_id", alert.ProductID), zap.Error(err))
		}
	}
	return nil
}

var _ shared.EventHandler = (*ReorderAlertHandler)(nil)

// LoggingStockAlertNotifier writes alerts to the log
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("product_id", alert.ProductID),
		zap.String("product_name", alert.ProductName),
		zap.String("current_stock", alert.CurrentStock),
	)
	return nil
}
