package cron

import (
	"context"
	"errors"
	"maps"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
	defaultTerminalAttempts    = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type DeadLetterPruner interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionParams configure the table pruning jobs. TerminalAttempts should
// match the publisher's max attempts so rows it gave up on are pruned too.
type RetentionParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           OutboxPruner
	DeadLetters      DeadLetterPruner
	OutboxDays       int
	DeadLetterDays   int
	TerminalAttempts int
}

// RetentionJobs returns one job for published outbox rows and one for
// dead-lettered rows. Dead letters are kept longer so they can be replayed.
func RetentionJobs(p RetentionParams) ([]Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Outbox == nil:
		return nil, errors.New("outbox pruner required")
	case p.DeadLetters == nil:
		return nil, errors.New("dead letter pruner required")
	}
	terminal := positiveOr(p.TerminalAttempts, defaultTerminalAttempts)

	outboxJob := &pruneJob{
		name:   "outbox-retention",
		logg:   p.Logger,
		db:     p.DB,
		days:   positiveOr(p.OutboxDays, defaultOutboxRetentionDays),
		fields: map[string]any{"terminal_attempts": terminal},
		now:    time.Now,
		prune: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return p.Outbox.DeletePublishedBefore(ctx, tx, cutoff, terminal)
		},
	}
	dlqJob := &pruneJob{
		name:  "outbox-dlq-retention",
		logg:  p.Logger,
		db:    p.DB,
		days:  positiveOr(p.DeadLetterDays, defaultDLQRetentionDays),
		now:   time.Now,
		prune: p.DeadLetters.DeleteOlderThan,
	}
	return []Job{outboxJob, dlqJob}, nil
}

// pruneJob deletes rows older than days inside one transaction.
type pruneJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	days   int
	fields map[string]any
	now    func() time.Time
	prune  func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)

	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.prune(ctx, tx, cutoff)
		deleted = n
		return err
	}); err != nil {
		return err
	}

	fields := map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}
	maps.Copy(fields, j.fields)
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention sweep finished")
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
