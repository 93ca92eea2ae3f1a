package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/pos-backend/internal/analytics/writer"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/shopspring/decimal"
)

type saleCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newSaleCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &saleCompletedHandler{writer: writer, logg: logg}
}

func (h *saleCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.SaleCompletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for sale_completed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"sale_id":      event.SaleID,
		"total_amount": event.TotalAmount.StringFixed(2),
	})

	row, err := buildSaleRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build sale row", err)
		return err
	}
	if err := h.writer.InsertSale(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sale row", err)
		return err
	}

	h.logg.Info(logCtx, "sale_completed handler inserted sale row")
	return nil
}

func buildSaleRow(envelope types.Envelope, event *payloads.SaleCompletedEvent) (types.SaleEventRow, error) {
	lines, err := analyticswriter.JSONColumn(event.Lines)
	if err != nil {
		return types.SaleEventRow{}, fmt.Errorf("encode lines json: %w", err)
	}
	payloadJSON, err := analyticswriter.JSONColumn(envelope.Payload)
	if err != nil {
		return types.SaleEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	completed := event.CompletedAt
	if completed.IsZero() {
		completed = envelope.OccurredAt
	}

	return types.SaleEventRow{
		EventID:       envelope.EventID,
		SaleID:        event.SaleID.String(),
		OperatorID:    event.OperatorID.String(),
		PaymentMethod: string(event.PaymentMethod),
		ItemCount:     int64(event.ItemCount),
		SubtotalCents: toCents(event.Subtotal),
		DiscountCents: toCents(event.DiscountAmount),
		TaxCents:      toCents(event.TaxAmount),
		TotalCents:    toCents(event.TotalAmount),
		CompletedAt:   completed.UTC(),
		OccurredAt:    envelope.OccurredAt.UTC(),
		Lines:         lines,
		Payload:       payloadJSON,
	}, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
