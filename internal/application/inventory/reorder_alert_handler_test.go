package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockStockAlertNotifier struct {
	mock.Mock
}

func (m *MockStockAlertNotifier) SendAlert(ctx context.Context, alert StockAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func lowStockEvent(t *testing.T, remaining int64) *inventory.StockBelowReorderPointEvent {
	t.Helper()
	p, err := inventory.NewProductStock("Rosehip oil", "ml", decimal.NewFromInt(remaining), 1)
	require.NoError(t, err)
	p.ReorderPoint = decimal.NewFromInt(50)
	return inventory.NewStockBelowReorderPointEvent(p, time.Now())
}

func TestReorderAlertHandler_Handle(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	notifier := new(MockStockAlertNotifier)
	handler := NewReorderAlertHandler(zap.New(core)).WithNotifier(notifier)

	event := lowStockEvent(t, 20)
	notifier.On("SendAlert", mock.Anything, mock.MatchedBy(func(a StockAlert) bool {
		return a.AlertType == "low_stock" && a.CurrentStock == "20" && a.ReorderPoint == "50"
	})).Return(nil).Once()

	require.NoError(t, handler.Handle(context.Background(), event))
	notifier.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("stock at or below reorder point").Len())
}

func TestReorderAlertHandler_OutOfStock(t *testing.T) {
	notifier := new(MockStockAlertNotifier)
	handler := NewReorderAlertHandler(nil).WithNotifier(notifier)

	event := lowStockEvent(t, 10)
	event.CurrentStock = decimal.Zero
	notifier.On("SendAlert", mock.Anything, mock.MatchedBy(func(a StockAlert) bool {
		return a.AlertType == "out_of_stock"
	})).Return(errors.New("smtp down")).Once()

	assert.NoError(t, handler.Handle(context.Background(), event))
	notifier.AssertExpectations(t)
}

func TestReorderAlertHandler_RejectsOtherEvents(t *testing.T) {
	handler := NewReorderAlertHandler(nil)
	p, err := inventory.NewProductStock("Rosehip oil", "ml", decimal.NewFromInt(10), 1)
	require.NoError(t, err)

	err = handler.Handle(context.Background(), inventory.NewContainerOpenedEvent(p, "BOTTLE_001", time.Now()))
	assert.Error(t, err)
	assert.Equal(t, []string{inventory.EventTypeStockBelowReorderPoint}, handler.EventTypes())
}
