package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/internal/analytics/router"
	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const analyticsConsumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

// deduper claims an event for a consumer; Release undoes the claim so a
// redelivery gets another chance.
type deduper interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type verdict int

const (
	ack verdict = iota
	nack
)

// Service feeds sale and stock events from the analytics subscription into
// the warehouse. Delivery is at-least-once, so every event is claimed in
// Redis before it is handled.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	dedupe       deduper
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, dedupe deduper, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case dedupe == nil:
		return nil, errors.New("event deduper is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process acks poison messages so they are not redelivered forever and nacks
// anything that may succeed on a later attempt.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return ack
	}

	first, err := s.dedupe.Claim(ctx, analyticsConsumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "claim analytics event", err)
		return nack
	}
	if !first {
		s.logg.Debug(ctx, "analytics event already handled")
		return ack
	}

	err = s.handler.Handle(ctx, envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event recorded")
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "no analytics route for event type")
		return ack
	case errors.Is(err, router.ErrMalformedPayload):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping analytics event with undecodable payload")
		return ack
	default:
		s.logg.Error(ctx, "record analytics event", err)
		if relErr := s.dedupe.Release(context.WithoutCancel(ctx), analyticsConsumerName, eventID); relErr != nil {
			s.logg.Error(ctx, "release analytics event claim", relErr)
		}
		return nack
	}
}
