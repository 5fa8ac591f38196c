package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/router"
	"github.com/angelmondragon/tourbook-backend/internal/analytics/worker"
	"github.com/angelmondragon/tourbook-backend/internal/analytics/writer"
	"github.com/angelmondragon/tourbook-backend/pkg/bigquery"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourbook-backend/pkg/pubsub"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.AnalyticsSubscription,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer psClient.Close()
	if err := psClient.EnsureSubscriptionExists(ctx, cfg.PubSub.AnalyticsSubscription); err != nil {
		return err
	}

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return err
	}
	defer bq.Close()
	if err := bq.Prepare(ctx, writer.BookingEventsTable(cfg.BigQuery.BookingEventsTable)); err != nil {
		return err
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return err
	}
	rows, err := writer.New(bq, writer.Options{
		Table:     cfg.BigQuery.BookingEventsTable,
		BatchSize: cfg.BigQuery.BatchSize,
	})
	if err != nil {
		return err
	}
	routes, err := router.New(rows, router.WithLogger(logg))
	if err != nil {
		return err
	}
	consumer, err := worker.NewService(worker.ServiceParams{
		Subscription: psClient.Subscriber(cfg.PubSub.AnalyticsSubscription),
		Handler:      routes,
		Guard:        guard,
		Flusher:      rows,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	g.Go(func() error {
		logg.Info(gctx, "analytics worker ready")
		return consumer.Run(gctx)
	})
	return g.Wait()
}
