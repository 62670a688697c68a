package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader serves queued messages, then blocks until the context ends
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	done      chan struct{}
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{done: make(chan struct{})}
	for i, v := range values {
		r.messages = append(r.messages, kafka.Message{Offset: int64(i), Value: []byte(v)})
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.messages) == 0 {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeRecorder struct {
	mu      sync.Mutex
	batches [][]inventoryapp.RecordMovementRequest
	errs    []error
}

func (f *fakeRecorder) RecordMovements(_ context.Context, reqs []inventoryapp.RecordMovementRequest) ([]inventoryapp.MovementResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.batches = append(f.batches, reqs)
	return make([]inventoryapp.MovementResponse, len(reqs)), nil
}

func runUntilDrained(t *testing.T, l *TransactionListener, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not drain the reader")
	}
	cancel()
	require.NoError(t, <-errCh)
}

const saleEvent = `{
	"event_id": "evt-1",
	"reference": "TXN-1001",
	"created_by": "till-2",
	"items": [
		{"product_id": "5b0f3c1e-8a57-4c1b-9d6e-0b7b2a0b6a11", "quantity": "12.5", "container_status": "partial", "container_id": "BOTTLE_001"},
		{"product_id": "9c1e2d3f-4a5b-4c6d-8e7f-0a1b2c3d4e5f", "quantity": "1", "movement_type": "bundle_sale", "container_status": "full"}
	]
}`

func TestTransactionListener_RecordsItemsAsOneBatch(t *testing.T) {
	reader := newFakeReader(saleEvent)
	recorder := &fakeRecorder{}
	l := NewTransactionListener(reader, recorder, zap.NewNop(), WithRetry(1, 0))

	runUntilDrained(t, l, reader)

	require.Len(t, recorder.batches, 1)
	batch := recorder.batches[0]
	require.Len(t, batch, 2)

	assert.Equal(t, uuid.MustParse("5b0f3c1e-8a57-4c1b-9d6e-0b7b2a0b6a11"), batch[0].ProductID)
	assert.Equal(t, "sale", batch[0].MovementType)
	assert.True(t, decimal.RequireFromString("12.5").Equal(batch[0].Quantity))
	assert.Equal(t, "TXN-1001", batch[0].Reference)
	assert.Equal(t, "till-2", batch[0].CreatedBy)
	require.NotNil(t, batch[0].Container)
	assert.Equal(t, "partial", batch[0].Container.Status)
	assert.Equal(t, "BOTTLE_001", batch[0].Container.ContainerID)

	assert.Equal(t, "bundle_sale", batch[1].MovementType)
	assert.Equal(t, "full", batch[1].Container.Status)

	assert.Equal(t, []int64{0}, reader.committed)
}

func TestTransactionListener_DropsMalformedEvents(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reader := newFakeReader(
		`{not json`,
		`{"event_id": "evt-2", "reference": "TXN-2", "items": []}`,
		`{"reference": "TXN-3", "items": [{"product_id": "5b0f3c1e-8a57-4c1b-9d6e-0b7b2a0b6a11", "quantity": "1", "container_status": "opened"}]}`,
	)
	recorder := &fakeRecorder{}
	l := NewTransactionListener(reader, recorder, zap.New(core), WithRetry(1, 0))

	runUntilDrained(t, l, reader)

	assert.Empty(t, recorder.batches)
	assert.Equal(t, []int64{0, 1, 2}, reader.committed)
	assert.Equal(t, 3, logs.FilterMessage("Dropping malformed transaction event").Len())
}

func TestTransactionListener_SkipsDuplicateEventIDs(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	reader := newFakeReader(saleEvent, saleEvent)
	recorder := &fakeRecorder{}
	l := NewTransactionListener(reader, recorder, zap.NewNop(),
		WithIdempotency(store, time.Hour), WithRetry(1, 0))

	runUntilDrained(t, l, reader)

	assert.Len(t, recorder.batches, 1)
	assert.Equal(t, []int64{0, 1}, reader.committed)
}

func TestTransactionListener_Handle(t *testing.T) {
	event := func() *TransactionCompletedEvent {
		return &TransactionCompletedEvent{
			EventID:   "evt-9",
			Reference: "TXN-9",
			Items: []TransactionItem{{
				ProductID: uuid.New(),
				Quantity:  decimal.NewFromInt(2),
			}},
		}
	}

	t.Run("failed attempt releases the event id", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		t.Cleanup(func() { _ = store.Close() })
		recorder := &fakeRecorder{errs: []error{inventory.ErrProductNotFound}}
		l := NewTransactionListener(nil, recorder, zap.NewNop(), WithIdempotency(store, time.Hour))

		err := l.Handle(context.Background(), event())
		assert.ErrorIs(t, err, inventory.ErrProductNotFound)

		processed, err := store.IsProcessed(context.Background(), "txn:evt-9")
		require.NoError(t, err)
		assert.False(t, processed)

		require.NoError(t, l.Handle(context.Background(), event()))
		assert.Len(t, recorder.batches, 1)
	})

	t.Run("events without id are always recorded", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		t.Cleanup(func() { _ = store.Close() })
		recorder := &fakeRecorder{}
		l := NewTransactionListener(nil, recorder, zap.NewNop(), WithIdempotency(store, time.Hour))

		e := event()
		e.EventID = ""
		require.NoError(t, l.Handle(context.Background(), e))
		require.NoError(t, l.Handle(context.Background(), e))
		assert.Len(t, recorder.batches, 2)
	})
}

func TestTransactionListener_RetriesTransientFailures(t *testing.T) {
	reader := newFakeReader(saleEvent)
	recorder := &fakeRecorder{errs: []error{
		errors.New("connection reset by peer"),
		shared.ErrConcurrencyConflict,
		nil,
	}}
	l := NewTransactionListener(reader, recorder, zap.NewNop(), WithRetry(3, 0))

	runUntilDrained(t, l, reader)

	assert.Len(t, recorder.batches, 1)
	assert.Empty(t, recorder.errs)
}

func TestTransactionListener_DoesNotRetryDomainErrors(t *testing.T) {
	reader := newFakeReader(saleEvent)
	recorder := &fakeRecorder{errs: []error{inventory.ErrInvalidMovementType, nil}}
	l := NewTransactionListener(reader, recorder, zap.NewNop(), WithRetry(3, 0))

	runUntilDrained(t, l, reader)

	assert.Empty(t, recorder.batches)
	assert.Len(t, recorder.errs, 1)
	assert.Equal(t, []int64{0}, reader.committed)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("i/o timeout")))
	assert.True(t, retryable(shared.ErrConcurrencyConflict))
	assert.False(t, retryable(inventory.ErrInvalidQuantity))
	assert.False(t, retryable(context.Canceled))
}
