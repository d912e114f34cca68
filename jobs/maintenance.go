package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/repairdesk/repairdesk/internal/jobs"
)

// Warmer prefills a cache.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// DashboardWarmupJob recomputes the dashboard into the cache ahead of the first request.
type DashboardWarmupJob struct {
	jobBase
	Dashboard Warmer
}

// NewDashboardWarmupJob wires the warmup handler.
func NewDashboardWarmupJob(dashboard Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{jobBase: jobBase{Logger: logger, Metrics: metrics}, Dashboard: dashboard}
}

// Handle executes the warmup.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() { err = tracker.End(err) }()

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := j.Dashboard.Warmup(warmCtx); err != nil {
		j.logger(TaskDashboardWarmup).Error("warm dashboard", slog.Any("error", err))
		return err
	}
	return nil
}

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob drops expired idempotency keys.
type IdempotencyCleanupJob struct {
	jobBase
	Keys      KeyCleaner
	Retention time.Duration
}

// NewIdempotencyCleanupJob wires the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{jobBase: jobBase{Logger: logger, Metrics: metrics}, Keys: keys, Retention: retention}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	retention := j.Retention
	if payload.Retention > 0 {
		retention = payload.Retention
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}

	tracker := j.metrics().Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskIdempotencyCleanup)
	n, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("cleanup idempotency keys", slog.Any("error", err))
		return err
	}
	j.metrics().AddPurgedKeys(n)
	logger.Info("completed idempotency cleanup", slog.Int64("purged", n), slog.Duration("retention", retention))
	return nil
}
