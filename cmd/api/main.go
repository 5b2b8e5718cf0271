package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/therapistbooster/booking-platform/internal/api/router"
	"github.com/therapistbooster/booking-platform/internal/booking"
	appconfig "github.com/therapistbooster/booking-platform/internal/config"
	"github.com/therapistbooster/booking-platform/internal/events"
	"github.com/therapistbooster/booking-platform/internal/meeting"
	"github.com/therapistbooster/booking-platform/internal/notify"
	"github.com/therapistbooster/booking-platform/internal/observability/metrics"
	"github.com/therapistbooster/booking-platform/internal/payments"
	"github.com/therapistbooster/booking-platform/internal/profiles"
	"github.com/therapistbooster/booking-platform/internal/timeslot"
	"github.com/therapistbooster/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	m := metrics.NewBookingMetrics(nil)

	// Stores
	bookingStore := booking.NewStore(pool)
	slotStore := timeslot.NewStore(pool)
	profileStore := profiles.NewStore(pool)
	outboxStore := events.NewOutboxStore(pool)
	processedStore := events.NewProcessedStore(pool)

	// Email
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, using stub email sender")
		emailSender = notify.NewStubEmailSender(logger)
	}

	// Zoom meetings
	tokens := meeting.NewTokenSource(cfg.ZoomAccountID, cfg.ZoomClientID, cfg.ZoomClientSecret, rdb, logger)
	zoomClient := meeting.NewZoomClient(tokens, logger)
	scheduler := meeting.NewScheduler(zoomClient, emailSender, m, logger)

	// Booking lifecycle
	checkout := payments.NewCheckoutService(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, logger)
	coordinator := booking.NewCoordinator(bookingStore, slotStore, profileStore, checkout, m, logger).
		WithHoldTTL(cfg.HoldTTL).
		WithCurrency(cfg.DefaultCurrency)
	manager := booking.NewManager(bookingStore, slotStore, profileStore, scheduler, emailSender, logger)
	availability := timeslot.NewAvailability(slotStore, bookingStore, profileStore, logger)

	// Background workers
	reaper := booking.NewReaper(bookingStore, m, logger).
		WithTTL(cfg.HoldTTL).
		WithInterval(cfg.ReaperInterval)
	processor := payments.NewProcessor(bookingStore, profileStore, scheduler, logger)
	deliverer := events.NewDeliverer(outboxStore, processor, logger).
		WithInterval(cfg.OutboxInterval).
		WithBatchSize(int32(cfg.OutboxBatchSize))
	go reaper.Start(ctx)
	go deliverer.Start(ctx)

	// Handlers
	bookingHandler := booking.NewHandler(coordinator, manager, availability, logger)
	profilesHandler := profiles.NewHandler(profileStore, logger)
	stripeWebhook := payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, processedStore, outboxStore, m, logger)

	r := router.New(&router.Config{
		BookingHandler:  bookingHandler,
		ProfilesHandler: profilesHandler,
		StripeWebhook:   stripeWebhook,
		MetricsHandler:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
