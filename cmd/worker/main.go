package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/repairdesk/repairdesk/internal/app"
	jobmetrics "github.com/repairdesk/repairdesk/internal/jobs"
	"github.com/repairdesk/repairdesk/jobs"
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

	logger, flush := app.NewLogger(cfg)
	defer flush()

	if !cfg.UsesPostgres() {
		logger.Error("worker needs STORE_DRIVER=postgres; the in-memory store is not shared between processes")
		os.Exit(1)
	}

	rt, err := app.OpenRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("open runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()

	metrics := jobmetrics.NewMetrics(rt.Metrics.Registerer())
	svc := rt.Services

	workerJobs := jobs.Jobs{
		LowStock:  jobs.NewLowStockScanJob(svc.Inventory, cfg.LowStockThreshold, logger, metrics),
		Reconcile: jobs.NewStockReconcileJob(svc.Inventory, logger, metrics),
		Warmup:    jobs.NewDashboardWarmupJob(svc.Dashboard, logger, metrics),
		Cleanup:   jobs.NewIdempotencyCleanupJob(svc.Idempotency, cfg.IdempotencyRetention, logger, metrics),
	}
	cron, err := jobs.Schedule{
		LowStockScan:       cfg.LowStockScanCron,
		Reconcile:          cfg.ReconcileCron,
		DashboardWarmup:    cfg.DashboardWarmupCron,
		IdempotencyCleanup: cfg.IdempotencyGCCron,
	}.Registrations()
	if err != nil {
		logger.Error("build job schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    workerJobs.Handlers(),
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: rt.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
