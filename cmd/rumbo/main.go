package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/rumbo-tms/rumbo-tms/internal/advances"
	"github.com/rumbo-tms/rumbo-tms/internal/app"
	"github.com/rumbo-tms/rumbo-tms/internal/billing"
	"github.com/rumbo-tms/rumbo-tms/internal/costing"
	"github.com/rumbo-tms/rumbo-tms/internal/fx"
	"github.com/rumbo-tms/rumbo-tms/internal/invoices"
	"github.com/rumbo-tms/rumbo-tms/internal/itineraries"
	"github.com/rumbo-tms/rumbo-tms/internal/notify"
	"github.com/rumbo-tms/rumbo-tms/internal/observability"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/cache"
	"github.com/rumbo-tms/rumbo-tms/internal/platform/db"
	"github.com/rumbo-tms/rumbo-tms/internal/quotations"
	"github.com/rumbo-tms/rumbo-tms/internal/vehicles"
	"github.com/rumbo-tms/rumbo-tms/jobs"
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

	validate := validator.New()

	rates := fx.NewCachedRateSource(fx.NewRateRepository(pool), redisClient, cfg.RateCacheTTL)
	engine := costing.NewEngine(costing.NewSubstringTollEstimator(nil))
	guard := billing.NewGuard(pool)
	vehicleRepo := vehicles.NewRepository(pool)

	quotationRepo := quotations.NewRepository(pool)
	itineraryRepo := itineraries.NewRepository(pool)
	invoiceRepo := invoices.NewRepository(pool)
	advanceRepo := advances.NewRepository(pool)

	notifier := notify.NewQueueNotifier(asynqClient, jobs.QueueDefault)
	reminders := notify.NewRedisReminderStore(redisClient)

	quotationService := quotations.NewService(quotationRepo, vehicleRepo, rates, guard, engine, itineraryRepo, logger, cfg.RoundUnit, cfg.DefaultCurrency)
	itineraryService := itineraries.NewService(itineraryRepo, quotationRepo, rates,
		[]itineraries.ReferenceLookup{invoiceRepo, advanceRepo}, logger)
	invoiceService := invoices.NewService(invoiceRepo, itineraryRepo, notifier, reminders, logger, cfg.TaxPercent)
	advanceService := advances.NewService(advanceRepo, itineraryRepo, quotationRepo, vehicleRepo, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		QuotationHandler: quotations.NewHandler(logger, quotationService, validate),
		ItineraryHandler: itineraries.NewHandler(logger, itineraryService, validate),
		InvoiceHandler:   invoices.NewHandler(logger, invoiceService, validate),
		AdvanceHandler:   advances.NewHandler(logger, advanceService, validate),
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
