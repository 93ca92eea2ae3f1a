package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload wraps payloads that will never decode.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertSale(ctx context.Context, row types.SaleEventRow) error
	InsertStock(ctx context.Context, row types.StockEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router sends each envelope to the handler for its event type.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter installs the BigQuery handlers. Overrides replace a default
// handler; overrides for event types with no default are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventSaleCompleted: newSaleCompletedHandler(writer, logg),
		enums.EventStockLow:      newStockLowHandler(writer, logg),
	}
	for eventType, custom := range overrides {
		if _, ok := handlers[eventType]; ok && custom != nil {
			handlers[eventType] = custom
		}
	}
	return &Router{handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := payloads.Decode(envelope.EventType, envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return handler.Handle(ctx, envelope, payload)
}
