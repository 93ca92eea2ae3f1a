package enums

import "slices"

// OutboxAggregateType is the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateSale    OutboxAggregateType = "sale"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = []OutboxAggregateType{AggregateSale, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, value, "aggregate type", nil)
}

// OutboxEventType names a domain event. Each one has a payload struct in
// pkg/outbox/payloads.
type OutboxEventType string

const (
	EventSaleCompleted OutboxEventType = "sale_completed"
	EventStockLow      OutboxEventType = "stock_low"
)

var outboxEventTypes = []OutboxEventType{EventSaleCompleted, EventStockLow}

func (e OutboxEventType) IsValid() bool { return slices.Contains(outboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(outboxEventTypes, value, "event type", nil)
}

// OutboxDLQErrorReason records why a row was moved to outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
