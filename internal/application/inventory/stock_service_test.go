package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newStockProduct(t *testing.T, full int, capacity int64) *inventory.ProductStock {
	t.Helper()
	p, err := inventory.NewProductStock("Eucalyptus oil", "ml", decimal.NewFromInt(capacity), full)
	require.NoError(t, err)
	return p
}

func TestStockService_CreateProduct(t *testing.T) {
	repo := newMemProductRepo()
	svc := NewStockService(repo, nil, zaptest.NewLogger(t))

	view, err := svc.CreateProduct(context.Background(), CreateProductRequest{
		Name:              "Tea tree oil",
		BaseUnit:          "ml",
		ContainerCapacity: decimal.NewFromInt(30),
		FullContainers:    4,
		ReorderPoint:      decimal.NewFromInt(60),
	})

	require.NoError(t, err)
	assert.True(t, view.ContainerTracked)
	assert.Equal(t, "120", view.CurrentStock.String())
	assert.Equal(t, 4, view.Containers.Full)
	assert.Empty(t, view.Containers.Partial)
	assert.False(t, view.BelowReorderPoint)

	stored := repo.get(view.ID)
	assert.Equal(t, "60", stored.ReorderPoint.String())
}

func TestStockService_CreateProduct_Untracked(t *testing.T) {
	repo := newMemProductRepo()
	svc := NewStockService(repo, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	view, err := svc.CreateProduct(ctx, CreateProductRequest{
		Name:         "Cotton pads",
		BaseUnit:     "pcs",
		InitialStock: decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	assert.False(t, view.ContainerTracked)
	assert.Equal(t, "400", view.CurrentStock.String())
	assert.True(t, repo.get(view.ID).IsConsistent())

	_, err = svc.DeductFull(ctx, view.ID)
	assert.ErrorIs(t, err, inventory.ErrNotContainerTracked)
	assert.Equal(t, "400", repo.get(view.ID).CurrentStock.String())

	for name, req := range map[string]CreateProductRequest{
		"initial stock on a tracked product": {Name: "x", ContainerCapacity: decimal.NewFromInt(10), InitialStock: decimal.NewFromInt(5)},
		"sealed containers without capacity": {Name: "x", FullContainers: 2},
		"negative initial stock":             {Name: "x", InitialStock: decimal.NewFromInt(-1)},
		"negative capacity":                  {Name: "x", ContainerCapacity: decimal.NewFromInt(-1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, req)
			assert.Error(t, err)
		})
	}
}

func TestStockService_CreateProduct_RejectsNegativeReorderPoint(t *testing.T) {
	svc := NewStockService(newMemProductRepo(), nil, nil)

	_, err := svc.CreateProduct(context.Background(), CreateProductRequest{
		Name:              "x",
		ContainerCapacity: decimal.NewFromInt(1),
		ReorderPoint:      decimal.NewFromInt(-1),
	})

	assert.Error(t, err)
}

func TestStockService_DeductPartial(t *testing.T) {
	ctx := context.Background()
	p := newStockProduct(t, 2, 100)
	repo := newMemProductRepo(p)
	publisher := NewMockEventPublisher()
	svc := NewStockService(repo, nil, zaptest.NewLogger(t))
	svc.SetEventPublisher(publisher)

	view, err := svc.DeductPartial(ctx, p.ID, DeductPartialRequest{
		Quantity:       decimal.NewFromInt(25),
		TransactionRef: "TXN-1",
		UserID:         "staff-7",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, view.Containers.Full)
	require.Len(t, view.Containers.Partial, 1)
	assert.Equal(t, "75", view.Containers.Partial[0].Remaining.String())
	assert.Equal(t, "partial", view.Containers.Partial[0].Status)
	require.Len(t, view.Containers.Partial[0].SaleHistory, 1)
	assert.Equal(t, "TXN-1", view.Containers.Partial[0].SaleHistory[0].TransactionRef)
	assert.Equal(t, "175", view.CurrentStock.String())
	assert.Equal(t, "175", view.AvailableStock.String())
	assert.Equal(t, 2, view.Version)

	stored := repo.get(p.ID)
	assert.True(t, stored.IsConsistent())
	assert.Len(t, publisher.GetEventsByType(inventory.EventTypeContainerOpened), 1)
}

func TestStockService_DeductPartial_Oversell(t *testing.T) {
	p := newStockProduct(t, 0, 100)
	svc := NewStockService(newMemProductRepo(p), nil, nil)
	publisher := NewMockEventPublisher()
	svc.SetEventPublisher(publisher)

	view, err := svc.DeductPartial(context.Background(), p.ID, DeductPartialRequest{Quantity: decimal.NewFromInt(30)})

	require.NoError(t, err)
	require.Len(t, view.Containers.Partial, 1)
	assert.Equal(t, "-30", view.Containers.Partial[0].Remaining.String())
	assert.Equal(t, "oversold", view.Containers.Partial[0].Status)
	assert.True(t, view.CurrentStock.IsZero())
	assert.Len(t, publisher.GetEventsByType(inventory.EventTypeContainerOversold), 1)
}

func TestStockService_ProductNotFound(t *testing.T) {
	svc := NewStockService(newMemProductRepo(), nil, nil)
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.DeductPartial(ctx, id, DeductPartialRequest{Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)

	_, err = svc.DeductFull(ctx, id)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)

	_, err = svc.GetStock(ctx, id)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestStockService_DeductFullAndReplenish(t *testing.T) {
	ctx := context.Background()
	p := newStockProduct(t, 0, 50)
	repo := newMemProductRepo(p)
	svc := NewStockService(repo, nil, nil)

	view, err := svc.DeductFull(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, view.Containers.Full)
	assert.Equal(t, "-50", view.CurrentStock.String())

	view, err = svc.ReplenishFull(ctx, p.ID, ReplenishFullRequest{Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Containers.Full)
	assert.Equal(t, "100", view.CurrentStock.String())

	view, err = svc.ReplenishPartial(ctx, p.ID, ReplenishPartialRequest{ContainerID: "RET-1", Remaining: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.Len(t, view.Containers.Partial, 1)
	assert.Equal(t, "RET-1", view.Containers.Partial[0].ID)
	assert.Equal(t, "120", view.CurrentStock.String())
	assert.True(t, repo.get(p.ID).IsConsistent())
}

func TestStockService_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	p := newStockProduct(t, 1, 100)
	repo := new(MockProductStockRepository)
	repo.On("FindByID", mock.Anything, p.ID).Return(p.Clone(), nil).Times(2)
	repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict).Once()
	repo.On("SaveWithLock", mock.Anything, mock.MatchedBy(func(next *inventory.ProductStock) bool {
		return next.Version == p.Version+1
	})).Return(nil).Once()

	svc := NewStockService(repo, nil, zaptest.NewLogger(t))
	view, err := svc.DeductFull(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, view.Containers.Full)
	repo.AssertExpectations(t)
}

func TestStockService_GivesUpAfterMaxRetries(t *testing.T) {
	p := newStockProduct(t, 1, 100)
	repo := new(MockProductStockRepository)
	repo.On("FindByID", mock.Anything, p.ID).Return(p.Clone(), nil)
	repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict)

	svc := NewStockService(repo, nil, nil)
	svc.SetMaxRetries(2)

	_, err := svc.DeductFull(context.Background(), p.ID)

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	repo.AssertNumberOfCalls(t, "SaveWithLock", 3)
}

func TestStockService_DoesNotRetryOtherErrors(t *testing.T) {
	p := newStockProduct(t, 1, 100)
	repo := new(MockProductStockRepository)
	repo.On("FindByID", mock.Anything, p.ID).Return(p.Clone(), nil)
	repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(fmt.Errorf("connection reset"))

	svc := NewStockService(repo, nil, nil)
	_, err := svc.DeductFull(context.Background(), p.ID)

	assert.EqualError(t, err, "connection reset")
	repo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestStockService_ConcurrentDeductPartialLosesNoUpdate(t *testing.T) {
	ctx := context.Background()
	p := newStockProduct(t, 1, 1000)
	repo := newMemProductRepo(p)
	svc := NewStockService(repo, nil, nil)
	svc.SetMaxRetries(1000)

	// Open the bottle first so every sale targets the same container.
	_, err := svc.DeductPartial(ctx, p.ID, DeductPartialRequest{Quantity: decimal.NewFromInt(1), TransactionRef: "open"})
	require.NoError(t, err)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.DeductPartial(ctx, p.ID, DeductPartialRequest{
				Quantity:       decimal.NewFromInt(10),
				TransactionRef: fmt.Sprintf("TXN-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := repo.get(p.ID)
	require.Len(t, stored.PartialContainers, 1)
	c := stored.PartialContainers[0]
	assert.Equal(t, "749", c.Remaining.String())
	assert.Len(t, c.SaleHistory, workers+1)
	assert.Equal(t, "749", stored.CurrentStock.String())
	assert.Equal(t, workers+2, stored.Version)
	assert.True(t, stored.IsConsistent())
}

func TestStockService_ListBelowReorderPoint(t *testing.T) {
	low := newStockProduct(t, 1, 10)
	low.ReorderPoint = decimal.NewFromInt(20)
	ok := newStockProduct(t, 5, 10)
	ok.ReorderPoint = decimal.NewFromInt(20)

	svc := NewStockService(newMemProductRepo(low, ok), nil, nil)
	views, err := svc.ListBelowReorderPoint(context.Background(), shared.DefaultFilter())

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, low.ID, views[0].ID)
	assert.True(t, views[0].BelowReorderPoint)
}
