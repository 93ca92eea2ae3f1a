package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/internal/analytics/router"
	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	redisclient "github.com/angelmondragon/pos-backend/pkg/redis"
)

// recorder is a Handler that remembers what it saw and fails with err.
type recorder struct {
	seen []types.Envelope
	err  error
}

func (r *recorder) Handle(_ context.Context, env types.Envelope) error {
	r.seen = append(r.seen, env)
	return r.err
}

type fixture struct {
	svc     *Service
	handler *recorder
	dedupe  *RedisDeduper
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T, handlerErr error) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	dedupe, err := NewRedisDeduper(client, time.Hour)
	require.NoError(t, err)
	h := &recorder{err: handlerErr}
	return &fixture{
		svc: &Service{
			handler: h,
			dedupe:  dedupe,
			logg:    logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
		},
		handler: h,
		dedupe:  dedupe,
		redis:   mr,
	}
}

func stockLowMessage(t *testing.T, eventID uuid.UUID) *gcppubsub.Message {
	t.Helper()
	return message(t, outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"remaining":2,"threshold":5}`),
	}, routing("stock_low", "product", uuid.NewString()))
}

func TestProcessVerdicts(t *testing.T) {
	cases := []struct {
		name         string
		handlerErr   error
		want         verdict
		claimRemains bool
	}{
		{"recorded", nil, ack, true},
		{"no route", router.ErrUnsupportedEventType, ack, true},
		{"bad payload", fmt.Errorf("%w: bad json", router.ErrMalformedPayload), ack, true},
		{"warehouse down", errors.New("bigquery 503"), nack, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.handlerErr)
			eventID := uuid.New()

			require.Equal(t, tc.want, f.svc.process(context.Background(), stockLowMessage(t, eventID)))
			require.Len(t, f.handler.seen, 1)
			require.Equal(t, enums.EventStockLow, f.handler.seen[0].EventType)

			fresh, err := f.dedupe.Claim(context.Background(), analyticsConsumerName, eventID)
			require.NoError(t, err)
			require.Equal(t, !tc.claimRemains, fresh, "claim after %s", tc.name)
		})
	}
}

func TestProcessSkipsRedelivery(t *testing.T) {
	f := newFixture(t, nil)
	eventID := uuid.New()

	require.Equal(t, ack, f.svc.process(context.Background(), stockLowMessage(t, eventID)))
	require.Equal(t, ack, f.svc.process(context.Background(), stockLowMessage(t, eventID)))
	require.Len(t, f.handler.seen, 1)
}

func TestProcessAcksPoisonMessagesWithoutClaiming(t *testing.T) {
	f := newFixture(t, nil)

	poison := []*gcppubsub.Message{
		{ID: "garbage", Data: []byte("{")},
		message(t, outbox.PayloadEnvelope{EventID: "not-a-uuid"}, routing("stock_low", "product", "p-1")),
	}
	for _, msg := range poison {
		require.Equal(t, ack, f.svc.process(context.Background(), msg))
	}
	require.Empty(t, f.handler.seen)
	require.Empty(t, f.redis.Keys())
}

func TestProcessNacksWhenRedisIsDown(t *testing.T) {
	f := newFixture(t, nil)
	f.redis.Close()

	require.Equal(t, nack, f.svc.process(context.Background(), stockLowMessage(t, uuid.New())))
	require.Empty(t, f.handler.seen)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, HandlerFunc(nil), nil, nil)
	require.Error(t, err)
}
