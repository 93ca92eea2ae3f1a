package payloads

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

func TestDecodeStockLow(t *testing.T) {
	payload, err := Decode(enums.EventStockLow, []byte(`{"remaining":2,"threshold":5}`))
	require.NoError(t, err)

	event, ok := payload.(*StockLowEvent)
	require.True(t, ok, "got %T", payload)
	require.Equal(t, 2, event.Remaining)
	require.Equal(t, 5, event.Threshold)
}

func TestDecodeRejectsUnknownAndEmpty(t *testing.T) {
	_, err := Decode(enums.OutboxEventType("sale_voided"), []byte(`{}`))
	require.True(t, errors.Is(err, ErrUnknownEvent), "got %v", err)
	require.False(t, Known("sale_voided"))

	for _, raw := range []string{"", "  ", "null"} {
		_, err := Decode(enums.EventSaleCompleted, []byte(raw))
		require.True(t, errors.Is(err, ErrEmptyPayload), "raw %q: got %v", raw, err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode(enums.EventSaleCompleted, []byte(`{"itemCount":"many"}`))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrEmptyPayload))
}
