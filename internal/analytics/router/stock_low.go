package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/pos-backend/internal/analytics/writer"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type stockLowHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newStockLowHandler(writer Writer, logg *logger.Logger) Handler {
	return &stockLowHandler{writer: writer, logg: logg}
}

func (h *stockLowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.StockLowEvent)
	if !ok {
		return fmt.Errorf("invalid payload for stock_low")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"product_id": event.ProductID,
		"remaining":  event.Remaining,
	})

	payloadJSON, err := analyticswriter.JSONColumn(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode stock payload", err)
		return fmt.Errorf("encode payload json: %w", err)
	}

	row := types.StockEventRow{
		EventID:    envelope.EventID,
		ProductID:  event.ProductID.String(),
		Remaining:  int64(event.Remaining),
		Threshold:  int64(event.Threshold),
		OccurredAt: envelope.OccurredAt.UTC(),
		Payload:    payloadJSON,
	}
	if event.SaleID != uuid.Nil {
		saleID := event.SaleID.String()
		row.SaleID = &saleID
	}

	if err := h.writer.InsertStock(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert stock row", err)
		return err
	}
	h.logg.Info(logCtx, "stock_low handler inserted stock row")
	return nil
}
