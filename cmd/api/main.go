package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tourbook-backend/api/routes"
	"github.com/angelmondragon/tourbook-backend/internal/auth"
	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tourbook-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tourbook-backend/pkg/auth/session"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/mailer"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/migrate"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
	"github.com/angelmondragon/tourbook-backend/pkg/security"
	"github.com/angelmondragon/tourbook-backend/pkg/stripe"
)

const (
	webhookIdempotencyTTL = 72 * time.Hour
	shutdownTimeout       = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	revocations, err := session.NewRevocations(redisClient)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs := metrics.New(reg)

	authService, err := auth.NewService(auth.ServiceParams{
		DB:          dbClient.DB(),
		Hasher:      security.NewPasswordHasher(cfg.Password),
		Revocations: revocations,
		Mailer:      mailer.New(cfg.Mail, logg),
		Logger:      logg,
		Metrics:     obs,
		JWTConfig:   cfg.JWT,
		ResetTTL:    cfg.PasswordReset.TokenTTL,
		PublicURL:   cfg.App.PublicURL,
	})
	if err != nil {
		return err
	}

	reviewService := reviews.NewService(dbClient.DB())

	deps := routes.Deps{
		Config:         cfg,
		Logger:         logg,
		Metrics:        obs,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DB:             dbClient,
		Redis:          redisClient,
		Limiter:        redisClient,
		Auth:           authService,
		Users:          users.NewService(dbClient.DB(), reviewService.Ratings()),
		Tours:          tours.NewService(dbClient.DB()),
		Reviews:        reviewService,
	}

	bookingParams := bookings.ServiceParams{
		DB:        dbClient.DB(),
		Policy:    enums.CancelPolicy(cfg.Booking.CancelPolicy),
		PublicURL: cfg.App.PublicURL,
		Currency:  cfg.Stripe.Currency,
		Metrics:   obs,
	}
	if stripe.Configured(cfg.Stripe) {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		bookingParams.Checkout = stripeClient
		deps.StripeClient = stripeClient
	} else {
		logg.Warn(ctx, "stripe is not configured; checkout and webhooks are disabled")
	}
	if cfg.Eventing.Enabled {
		bookingParams.Events = outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	}

	bookingService, err := bookings.NewService(bookingParams)
	if err != nil {
		return err
	}
	deps.Bookings = bookingService

	if deps.StripeClient != nil {
		deps.StripeWebhook, err = stripewebhook.NewService(stripewebhook.ServiceParams{Bookings: bookingService, Metrics: obs})
		if err != nil {
			return err
		}
		deps.StripeGuard, err = idempotency.NewManager(redisClient, webhookIdempotencyTTL)
		if err != nil {
			return err
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
