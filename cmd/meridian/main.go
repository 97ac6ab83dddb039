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

	"github.com/meridianbooks/meridian/internal/app"
	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/accounts"
	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/mappings"
	"github.com/meridianbooks/meridian/internal/ledger/periods"
	"github.com/meridianbooks/meridian/internal/ledger/posting"
	"github.com/meridianbooks/meridian/internal/ledger/reports"
	"github.com/meridianbooks/meridian/internal/observability"
	"github.com/meridianbooks/meridian/internal/platform/cache"
	"github.com/meridianbooks/meridian/internal/platform/db"
	"github.com/meridianbooks/meridian/internal/recon"
	"github.com/meridianbooks/meridian/jobs"
)

type autoMatchEnqueuer struct {
	client *jobs.Client
}

func (e autoMatchEnqueuer) Enqueue(ctx context.Context, reconID int64, actor string) error {
	_, err := e.client.EnqueueAutoMatch(ctx, jobs.AutoMatchPayload{ReconciliationID: reconID, Actor: actor})
	return err
}

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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo, auditService)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, auditService)
	periodsHandler := periods.NewHandler(logger, periodsService)

	entriesRepo := entries.NewRepository(dbpool)
	entriesService := entries.NewService(entriesRepo, accountsService, auditService, metrics)

	mappingsRepo := mappings.NewRepository(dbpool)
	composer := posting.NewComposer(mappingsRepo)
	documents := posting.NewDocumentReader(dbpool)
	postingService := posting.NewService(documents, composer, entriesService)
	postingHandler := posting.NewHandler(logger, postingService)

	progress := recon.NewProgressTracker(redisClient, 24*time.Hour)
	reconRepo := recon.NewRepository(dbpool)
	reconService := recon.NewService(reconRepo, auditService, entriesService, progress, metrics)
	if cfg.MatchBatchSize > 0 {
		reconService.WithBatchSize(cfg.MatchBatchSize)
	}
	reconHandler := recon.NewHandler(logger, reconService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsService := reports.NewService(reportsRepo)
	reportsHandler := reports.NewHandler(logger, reportsService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	reconHandler.WithEnqueuer(autoMatchEnqueuer{client: jobClient})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		PeriodsHandler:  periodsHandler,
		PostingHandler:  postingHandler,
		ReconHandler:    reconHandler,
		ReportsHandler:  reportsHandler,
		AuditHandler:    auditHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
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
