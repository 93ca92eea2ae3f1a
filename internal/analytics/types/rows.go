package types

import (
	"encoding/json"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Envelope is one Pub/Sub delivery after the outbox body and the routing
// attributes have been merged. Payload is still the raw event data.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// SaleEventRow mirrors the sale_events BigQuery schema. Money columns are
// stored in cents.
type SaleEventRow struct {
	EventID       string             `bigquery:"event_id"`
	SaleID        string             `bigquery:"sale_id"`
	OperatorID    string             `bigquery:"operator_id"`
	PaymentMethod string             `bigquery:"payment_method"`
	ItemCount     int64              `bigquery:"item_count"`
	SubtotalCents int64              `bigquery:"subtotal_cents"`
	DiscountCents int64              `bigquery:"discount_cents"`
	TaxCents      int64              `bigquery:"tax_cents"`
	TotalCents    int64              `bigquery:"total_cents"`
	CompletedAt   time.Time          `bigquery:"completed_at"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Lines         cbigquery.NullJSON `bigquery:"lines"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// StockEventRow mirrors the stock_events BigQuery schema.
type StockEventRow struct {
	EventID    string             `bigquery:"event_id"`
	ProductID  string             `bigquery:"product_id"`
	SaleID     *string            `bigquery:"sale_id"`
	Remaining  int64              `bigquery:"remaining"`
	Threshold  int64              `bigquery:"threshold"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}
