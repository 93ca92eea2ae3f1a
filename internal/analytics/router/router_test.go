package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.OutboxEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, _ := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventSaleCompleted: handler,
	})
	data, _ := json.Marshal(payloads.SaleCompletedEvent{SaleID: uuid.New()})
	env := types.Envelope{
		EventType: enums.EventSaleCompleted,
		Payload:   data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	if _, ok := handler.payload.(*payloads.SaleCompletedEvent); !ok {
		t.Fatalf("expected decoded sale payload, got %T", handler.payload)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventStockLow})
	if !errors.Is(err, ErrMalformedPayload) || !errors.Is(err, payloads.ErrEmptyPayload) {
		t.Fatalf("expected malformed empty payload error, got %v", err)
	}
	if len(writer.stocks) != 0 {
		t.Fatal("no row should be written")
	}
}

func TestSaleCompletedWritesCentsRow(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	saleID := uuid.New()
	operatorID := uuid.New()
	completed := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)
	event := payloads.SaleCompletedEvent{
		SaleID:         saleID,
		OperatorID:     operatorID,
		Subtotal:       decimal.RequireFromString("53.98"),
		DiscountAmount: decimal.RequireFromString("5.40"),
		TaxAmount:      decimal.RequireFromString("4.86"),
		TotalAmount:    decimal.RequireFromString("53.44"),
		PaymentMethod:  enums.PaymentMethodCash,
		ItemCount:      5,
		Lines: []payloads.SaleLine{
			{ProductID: uuid.New(), Quantity: 2, Subtotal: decimal.RequireFromString("39.98")},
		},
		CompletedAt: completed,
	}
	data, _ := json.Marshal(event)

	env := types.Envelope{
		EventID:    "evt-1",
		EventType:  enums.EventSaleCompleted,
		OccurredAt: completed,
		Payload:    data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.sales) != 1 {
		t.Fatalf("expected one sale row, got %d", len(writer.sales))
	}
	row := writer.sales[0]
	if row.SaleID != saleID.String() || row.OperatorID != operatorID.String() {
		t.Fatalf("unexpected ids %+v", row)
	}
	if row.SubtotalCents != 5398 || row.DiscountCents != 540 || row.TaxCents != 486 || row.TotalCents != 5344 {
		t.Fatalf("unexpected cents %+v", row)
	}
	if row.PaymentMethod != "CASH" || row.ItemCount != 5 {
		t.Fatalf("unexpected method/count %+v", row)
	}
	if !row.Lines.Valid || !row.Payload.Valid {
		t.Fatal("expected lines and payload json")
	}
	if !row.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected completed_at %s", row.CompletedAt)
	}
}

func TestStockLowWritesRow(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	productID := uuid.New()
	data, _ := json.Marshal(payloads.StockLowEvent{ProductID: productID, Remaining: 3, Threshold: 10})

	env := types.Envelope{
		EventID:    "evt-2",
		EventType:  enums.EventStockLow,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.stocks) != 1 {
		t.Fatalf("expected one stock row, got %d", len(writer.stocks))
	}
	row := writer.stocks[0]
	if row.ProductID != productID.String() || row.Remaining != 3 || row.Threshold != 10 {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.SaleID != nil {
		t.Fatalf("expected nil sale id, got %v", *row.SaleID)
	}
}

func TestHandlerPropagatesWriterError(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	writer.err = errors.New("bigquery down")
	data, _ := json.Marshal(payloads.StockLowEvent{ProductID: uuid.New(), Remaining: 1, Threshold: 10})

	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventStockLow, Payload: data})
	if err == nil {
		t.Fatal("expected writer error")
	}
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) (*Router, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{}
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router, writer
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}
