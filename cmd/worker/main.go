package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbooks/meridian/internal/app"
	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/accounts"
	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/reports"
	"github.com/meridianbooks/meridian/internal/observability"
	"github.com/meridianbooks/meridian/internal/platform/cache"
	"github.com/meridianbooks/meridian/internal/platform/db"
	"github.com/meridianbooks/meridian/internal/recon"
	"github.com/meridianbooks/meridian/jobs"
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

	metrics := observability.NewMetrics()

	auditService := audit.NewService(audit.NewRepository(pool))
	accountsService := accounts.NewService(accounts.NewRepository(pool), auditService)
	entriesService := entries.NewService(entries.NewRepository(pool), accountsService, auditService, metrics)

	progress := recon.NewProgressTracker(redisClient, 24*time.Hour)
	reconService := recon.NewService(recon.NewRepository(pool), auditService, entriesService, progress, metrics)
	if cfg.MatchBatchSize > 0 {
		reconService.WithBatchSize(cfg.MatchBatchSize)
	}

	reportsService := reports.NewService(reports.NewRepository(pool))

	integrityTask := asynq.NewTask(jobs.TaskTypeLedgerIntegrity, nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeAutoMatch, Handler: jobs.NewAutoMatchHandler(reconService, metrics, logger)},
			{Type: jobs.TaskTypeLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(reportsService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
