// Package messaging consumes completed point-of-sale transactions from Kafka
// and records their stock movements.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	inventoryapp "github.com/clinic/backend/internal/application/inventory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMovementType = "sale"
	idempotencyPrefix   = "txn:"
)

// MessageReader is the part of *kafka.Reader the listener needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MovementRecorder records the movements of one transaction atomically
type MovementRecorder interface {
	RecordMovements(ctx context.Context, reqs []inventoryapp.RecordMovementRequest) ([]inventoryapp.MovementResponse, error)
}

// TransactionCompletedEvent is the payload published when a sale is closed at the till
type TransactionCompletedEvent struct {
	EventID   string            `json:"event_id"`
	Reference string            `json:"reference" validate:"required,max=100"`
	CreatedBy string            `json:"created_by" validate:"max=100"`
	Items     []TransactionItem `json:"items" validate:"required,min=1,dive"`
}

// TransactionItem is one product line of a completed transaction
type TransactionItem struct {
	ProductID         uuid.UUID        `json:"product_id" validate:"required"`
	Quantity          decimal.Decimal  `json:"quantity"`
	UnitID            *uuid.UUID       `json:"unit_id,omitempty"`
	MovementType      string           `json:"movement_type,omitempty"`
	ContainerStatus   string           `json:"container_status,omitempty" validate:"omitempty,oneof=full partial empty"`
	ContainerID       string           `json:"container_id,omitempty"`
	RemainingQuantity *decimal.Decimal `json:"remaining_quantity,omitempty"`
}

// ListenerOption configures a TransactionListener
type ListenerOption func(*TransactionListener)

// WithIdempotency skips events whose event_id was already processed
func WithIdempotency(store shared.IdempotencyStore, ttl time.Duration) ListenerOption {
	return func(l *TransactionListener) {
		l.store = store
		l.ttl = ttl
	}
}

// WithRetry sets how often a transient failure is retried before the message is dropped
func WithRetry(attempts int, backoff time.Duration) ListenerOption {
	return func(l *TransactionListener) {
		if attempts > 0 {
			l.attempts = attempts
		}
		l.backoff = backoff
	}
}

// TransactionListener turns completed transactions into ledger movements
type TransactionListener struct {
	reader   MessageReader
	recorder MovementRecorder
	validate *validator.Validate
	logger   *zap.Logger
	store    shared.IdempotencyStore
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

// NewReader creates a consumer-group reader for the configured topic
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
}

// NewTransactionListener creates a new TransactionListener
func NewTransactionListener(reader MessageReader, recorder MovementRecorder, logger *zap.Logger, opts ...ListenerOption) *TransactionListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &TransactionListener{
		reader:   reader,
		recorder: recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("transaction_listener"),
		ttl:      24 * time.Hour,
		attempts: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run consumes messages until ctx is cancelled. Every message is committed
// once handled, including messages that could not be applied.
func (l *TransactionListener) Run(ctx context.Context) error {
	l.logger.Info("Starting transaction listener")
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Stopping transaction listener")
				return nil
			}
			l.logger.Error("Failed to fetch kafka message", zap.Error(err))
			if !sleep(ctx, l.backoff) {
				return nil
			}
			continue
		}

		l.process(ctx, msg)

		if err := l.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			l.logger.Error("Failed to commit kafka message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// Close closes the underlying reader
func (l *TransactionListener) Close() error {
	return l.reader.Close()
}

func (l *TransactionListener) process(ctx context.Context, msg kafka.Message) {
	log := l.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	event, err := l.decode(msg.Value)
	if err != nil {
		log.Error("Dropping malformed transaction event", zap.Error(err))
		return
	}
	log = log.With(zap.String("event_id", event.EventID), zap.String("reference", event.Reference))

	for attempt := 1; attempt <= l.attempts; attempt++ {
		err = l.Handle(ctx, event)
		if err == nil || !retryable(err) {
			break
		}
		log.Warn("Transaction event failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < l.attempts && !sleep(ctx, l.backoff) {
			return
		}
	}
	if err != nil {
		log.Error("Failed to record transaction movements", zap.Error(err))
	}
}

func (l *TransactionListener) decode(value []byte) (*TransactionCompletedEvent, error) {
	var event TransactionCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := l.validate.Struct(&event); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &event, nil
}

// Handle records every item of the event as one atomic batch of movements.
// An event whose event_id was already handled is skipped.
func (l *TransactionListener) Handle(ctx context.Context, event *TransactionCompletedEvent) error {
	key := ""
	if l.store != nil && event.EventID != "" {
		key = idempotencyPrefix + event.EventID
		fresh, err := l.store.MarkProcessed(ctx, key, l.ttl)
		if err != nil {
			return fmt.Errorf("claim event %s: %w", event.EventID, err)
		}
		if !fresh {
			l.logger.Info("Skipping duplicate transaction event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	recorded, err := l.recorder.RecordMovements(ctx, toMovementRequests(event))
	if err != nil {
		if key != "" {
			if releaseErr := l.store.Release(ctx, key); releaseErr != nil {
				l.logger.Warn("Failed to release event key", zap.String("key", key), zap.Error(releaseErr))
			}
		}
		return err
	}

	l.logger.Info("Recorded transaction movements",
		zap.String("event_id", event.EventID),
		zap.String("reference", event.Reference),
		zap.Int("movements", len(recorded)),
	)
	return nil
}

func toMovementRequests(event *TransactionCompletedEvent) []inventoryapp.RecordMovementRequest {
	reqs := make([]inventoryapp.RecordMovementRequest, len(event.Items))
	for i, item := range event.Items {
		movementType := item.MovementType
		if movementType == "" {
			movementType = defaultMovementType
		}
		req := inventoryapp.RecordMovementRequest{
			ProductID:    item.ProductID,
			MovementType: movementType,
			Quantity:     item.Quantity,
			UnitID:       item.UnitID,
			Reference:    event.Reference,
			CreatedBy:    event.CreatedBy,
		}
		if item.ContainerStatus != "" {
			req.Container = &inventoryapp.ContainerFields{
				Status:            item.ContainerStatus,
				ContainerID:       item.ContainerID,
				RemainingQuantity: item.RemainingQuantity,
			}
		}
		reqs[i] = req
	}
	return reqs
}

// retryable reports whether err may succeed on another attempt.
// Domain errors are deterministic; concurrency conflicts are the exception.
func retryable(err error) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == shared.ErrConcurrencyConflict.Code
	}
	return !errors.Is(err, context.Canceled)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
