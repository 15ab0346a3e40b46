package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rumbo-tms/rumbo-tms/internal/app"
	"github.com/rumbo-tms/rumbo-tms/internal/billing"
	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/invoices"
	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/notify"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/cache"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/db"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
	"github.com/rumbo-tms/rumbo-tms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	rates := fx.NewCachedRateSource(fx.NewRateRepository(pool), redisClient, cfg.RateCacheTTL)
	engine := costing.NewEngine(costing.NewSubstringTollEstimator(nil))
	guard := billing.NewGuard(pool)
	vehicleRepo := vehicles.NewRepository(pool)

	quotationRepo := quotations.NewRepository(pool)
	itineraryRepo := itineraries.NewRepository(pool)
	invoiceRepo := invoices.NewRepository(pool)

	notifier := notify.NewQueueNotifier(asynqClient, jobs.QueueDefault)
	reminders := notify.NewRedisReminderStore(redisClient)

	quotationService := quotations.NewService(quotationRepo, vehicleRepo, rates, guard, engine, itineraryRepo, logger, cfg.RoundUnit, cfg.DefaultCurrency)
	invoiceService := invoices.NewService(invoiceRepo, itineraryRepo, notifier, reminders, logger, cfg.TaxPercent)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: notify.TaskTypeSend, Handler: notify.HandleSendTask(logger)},
			{Type: jobs.TaskTypeOverdueSweep, Handler: jobs.HandleOverdueSweepTask(guard, invoiceService, logger)},
			{Type: jobs.TaskTypeQuotationExpiry, Handler: jobs.HandleQuotationExpiryTask(guard, quotationService, cfg.QuotationMaxAge, logger)},
		},
		Cron: jobs.DefaultCron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
