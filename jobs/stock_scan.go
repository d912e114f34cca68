package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/repairdesk/repairdesk/internal/inventory"
	jobmetrics "github.com/repairdesk/repairdesk/internal/jobs"
)

// StockReader is the catalogue view the stock jobs need.
type StockReader interface {
	LowStock(ctx context.Context, threshold int64) ([]inventory.Item, error)
	StockDrift(ctx context.Context) ([]inventory.StockDrift, error)
}

// LowStockScanJob logs every item at or below the threshold and publishes the count.
type LowStockScanJob struct {
	jobBase
	Stock     StockReader
	Threshold int64
}

// NewLowStockScanJob wires the low stock scan handler.
func NewLowStockScanJob(stock StockReader, threshold int64, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{jobBase: jobBase{Logger: logger, Metrics: metrics}, Stock: stock, Threshold: threshold}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	threshold := j.Threshold
	if payload.Threshold > 0 {
		threshold = payload.Threshold
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskLowStockScan).With(slog.Int64("threshold", threshold))
	start := j.now()
	items, err := j.Stock.LowStock(ctx, threshold)
	if err != nil {
		logger.Error("load low stock items", slog.Any("error", err))
		return err
	}
	for _, item := range items {
		logger.Warn("item low on stock",
			slog.Int64("item_id", item.ID),
			slog.String("name", item.Name),
			slog.Int64("stock", item.Stock))
	}
	j.metrics().SetLowStock(len(items))
	logger.Info("completed low stock scan", slog.Int("items", len(items)), slog.Duration("duration", time.Since(start)))
	return nil
}

// StockReconcileJob reports items whose stock differs from the sum of their movements.
// It never corrects stock; drift is left for a human to investigate.
type StockReconcileJob struct {
	jobBase
	Stock StockReader
}

// NewStockReconcileJob wires the reconcile handler.
func NewStockReconcileJob(stock StockReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{jobBase: jobBase{Logger: logger, Metrics: metrics}, Stock: stock}
}

// Handle executes the reconcile.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	tracker := j.metrics().Track(TaskStockReconcile)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskStockReconcile)
	drift, err := j.Stock.StockDrift(ctx)
	if err != nil {
		logger.Error("load stock drift", slog.Any("error", err))
		return err
	}
	for _, d := range drift {
		logger.Warn("stock differs from movement journal",
			slog.Int64("item_id", d.ItemID),
			slog.String("name", d.Name),
			slog.Int64("stock", d.Stock),
			slog.Int64("journal", d.Journal))
	}
	j.metrics().SetStockDrift(len(drift))
	logger.Info("completed stock reconcile", slog.Int("drifted_items", len(drift)))
	return nil
}
