package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
	"github.com/angelmondragon/pos-backend/pkg/pubsub"
)

const (
	fallbackBatchSize  = 50
	fallbackPoll       = 500 * time.Millisecond
	fallbackAttempts   = 10
	publishAckDeadline = 15 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// broker is the Pub/Sub side; *pubsub.Client satisfies it.
type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	PendingCount(tx *gorm.DB) (int64, error)
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// outcome is what happened to one row within a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
	outcomeDeferred
)

type ServiceParams struct {
	Settings    config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Broker      broker
	Outbox      outboxStore
	DeadLetters deadLetterStore
	Registry    resolver
	Metrics     *metrics.OutboxMetrics
}

// Service relays committed sale and stock events from outbox_events to
// Pub/Sub. Rows of one aggregate go out in commit order: once a row fails,
// later rows with the same ordering key wait for the next batch.
type Service struct {
	logg        *logger.Logger
	db          txRunner
	broker      broker
	outbox      outboxStore
	deadLetters deadLetterStore
	registry    resolver
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	for name, missing := range map[string]bool{
		"logger":            p.Logger == nil,
		"database client":   p.DB == nil,
		"pubsub broker":     p.Broker == nil,
		"outbox repository": p.Outbox == nil,
		"dlq repository":    p.DeadLetters == nil,
		"event registry":    p.Registry == nil,
	} {
		if missing {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	svc := &Service{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		outbox:      p.Outbox,
		deadLetters: p.DeadLetters,
		registry:    p.Registry,
		metrics:     p.Metrics,
		batchSize:   orDefault(p.Settings.BatchSize, fallbackBatchSize),
		maxAttempts: orDefault(p.Settings.MaxAttempts, fallbackAttempts),
		poll:        time.Duration(p.Settings.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
	}
	if svc.poll <= 0 {
		svc.poll = fallbackPoll
	}
	return svc, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next poll; errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	pace := newPacer(s.poll)
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox batch failed", err)
		}
		if busy && err == nil {
			pace.reset()
			continue
		}
		if err := pace.wait(ctx, err != nil); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher stopping")
	return ctx.Err()
}

// processBatch claims up to batchSize rows in one transaction and settles
// each. It reports whether anything was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.outbox.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}

		held := map[string]bool{}
		counts := map[outcome]int{}
		for _, row := range rows {
			key := orderingKey(row)
			if held[key] {
				counts[outcomeDeferred]++
				s.metrics.IncDeferred()
				continue
			}
			got, err := s.settle(ctx, tx, row, key)
			if err != nil {
				return err
			}
			held[key] = got == outcomeRetry
			counts[got]++
		}

		if pending, err := s.outbox.PendingCount(tx); err == nil {
			s.metrics.SetPending(pending)
		}
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"claimed":       claimed,
			"published":     counts[outcomePublished],
			"retry":         counts[outcomeRetry],
			"dead_lettered": counts[outcomeDeadLettered],
			"deferred":      counts[outcomeDeferred],
		}), "outbox batch settled")
		return nil
	})
	return claimed > 0, err
}

// settle publishes one row and records the result on it. Only bookkeeping
// failures are returned; they roll back the whole batch.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, key string) (outcome, error) {
	fields := rowFields(row, key)

	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	publishErr := s.publish(ctx, row, resolved, key)
	switch {
	case publishErr == nil:
		if err := s.outbox.MarkPublishedTx(tx, row.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType), s.now().Sub(row.CreatedAt))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil
	case isPermanent(publishErr):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, publishErr, fields)
	}

	attempt := row.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, publishErr)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, exhausted, fields)
	}

	fields["error"] = publishErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed; holding ordering key until next batch")
	if err := s.outbox.MarkFailedTx(tx, row.ID, publishErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	s.metrics.IncRetried(string(row.EventType))
	return outcomeRetry, nil
}

func isPermanent(err error) bool {
	var nonRetry registry.NonRetryableError
	return errors.As(err, &nonRetry) || errors.Is(err, pubsub.ErrUnknownTopic)
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	msg := cause.Error()
	fields["error_reason"] = reason
	fields["error"] = msg
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	if err := s.deadLetters.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.outbox.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	s.metrics.IncDeadLettered(string(reason))
	return nil
}

// publish sends the stored envelope unchanged as the message body. Routing
// metadata rides in attributes so subscribers can filter without decoding.
func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent, key string) error {
	ackCtx, cancel := context.WithTimeout(ctx, publishAckDeadline)
	defer cancel()

	_, err := s.broker.Publish(ackCtx, resolved.Descriptor.Topic, &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	return err
}

// orderingKey groups rows that must reach subscribers in commit order.
func orderingKey(row models.OutboxEvent) string {
	return string(row.AggregateType) + ":" + row.AggregateID.String()
}

func rowFields(row models.OutboxEvent, key string) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"ordering_key":  key,
		"attempt_count": row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}
