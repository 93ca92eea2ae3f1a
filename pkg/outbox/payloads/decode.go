package payloads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

var (
	// ErrUnknownEvent is returned for event types with no payload schema.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrEmptyPayload is returned when the data section is missing or null.
	ErrEmptyPayload = errors.New("empty event payload")
)

var catalog = map[enums.OutboxEventType]func() any{
	enums.EventSaleCompleted: func() any { return &SaleCompletedEvent{} },
	enums.EventStockLow:      func() any { return &StockLowEvent{} },
}

// Known reports whether eventType has a registered payload.
func Known(eventType enums.OutboxEventType) bool {
	_, ok := catalog[eventType]
	return ok
}

// Decode unmarshals data into the payload struct registered for eventType.
// The result is always a pointer, e.g. *SaleCompletedEvent.
func Decode(eventType enums.OutboxEventType, data []byte) (any, error) {
	build, ok := catalog[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, eventType)
	}
	payload := build()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return payload, nil
}
