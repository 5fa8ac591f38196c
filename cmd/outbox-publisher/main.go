package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tourbook-backend/internal/relay"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/migrate"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tourbook-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	_ = godotenv.Load()

	requeue := flag.String("requeue", "", "comma-separated dead-lettered event ids to hand back to the relay, then exit")
	flag.Parse()

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
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if *requeue != "" {
		if err := requeueDeadLetters(ctx, cfg, logg, *requeue); err != nil {
			logg.Error(ctx, "requeue failed", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer psClient.Close()

	events, err := registry.New(cfg.PubSub)
	if err != nil {
		return err
	}

	sink := relay.NewPubSubSink(psClient)
	defer sink.Stop()

	r, err := relay.New(relay.Params{
		Logger:      logg,
		DB:          dbClient,
		Outbox:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Registry:    events,
		Sink:        sink,
		Metrics:     metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
		Checks: []relay.Check{
			{Name: "database", Ping: dbClient.Ping},
			{Name: "pubsub", Ping: psClient.Ping},
		},
		Settings: relay.SettingsFrom(cfg.Outbox),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	g.Go(func() error {
		logg.Info(gctx, "outbox publisher started")
		defer logg.Info(gctx, "outbox publisher stopping")
		return r.Run(gctx)
	})
	return g.Wait()
}

func requeueDeadLetters(ctx context.Context, cfg *config.Config, logg *logger.Logger, raw string) error {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("event id %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	dbClient, err := db.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	n, err := outbox.NewDLQRepository(dbClient.DB()).Requeue(ctx, ids...)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "events", n), "dead letters requeued")
	return nil
}
