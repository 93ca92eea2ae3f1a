package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/pos-backend/internal/analytics/router"
	"github.com/angelmondragon/pos-backend/internal/analytics/worker"
	"github.com/angelmondragon/pos-backend/internal/analytics/writer"
	"github.com/angelmondragon/pos-backend/pkg/bigquery"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/instance"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/pubsub"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(serviceName),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeLogged(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeLogged(logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer closeLogged(logg, "bigquery", bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	deduper, err := worker.NewRedisDeduper(redisClient, cfg.Idempotency.TTL)
	if err != nil {
		return err
	}
	sink, err := writer.New(bqClient, writer.Config{
		SaleTable:  cfg.BigQuery.SaleEventsTable,
		StockTable: cfg.BigQuery.StockEventsTable,
		BatchSize:  cfg.BigQuery.BatchSize,
	})
	if err != nil {
		return err
	}
	// rows still buffered when the subscription stops are written on the way out
	defer func() {
		if err := sink.Flush(context.WithoutCancel(ctx)); err != nil {
			logg.Error(ctx, "failed to flush analytics rows", err)
		}
	}()

	routes, err := router.NewRouter(sink, logg, nil)
	if err != nil {
		return err
	}
	service, err := worker.NewService(subscription, routes, deduper, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	return service.Run(ctx)
}

func closeLogged(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "failed to close "+what, err)
	}
}
