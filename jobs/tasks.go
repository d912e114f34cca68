package jobs

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/repairdesk/repairdesk/internal/jobs"
)

const (
	// QueueStock carries the stock scans; the worker polls it three times as often.
	QueueStock = "stock"
	// QueueDefault carries cache and housekeeping jobs.
	QueueDefault = "default"

	// TaskLowStockScan reports items at or below the low stock threshold.
	TaskLowStockScan = "stock:low_scan"
	// TaskStockReconcile compares item stock with the movement journal.
	TaskStockReconcile = "stock:reconcile"
	// TaskDashboardWarmup prefills the dashboard cache.
	TaskDashboardWarmup = "dashboard:warmup"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// queueWeights are the worker's polling priorities.
var queueWeights = map[string]int{
	QueueStock:   3,
	QueueDefault: 1,
}

// Queues lists the queues the worker serves, most urgent first.
var Queues = []string{QueueStock, QueueDefault}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockScanPayload overrides the scan threshold when positive.
type LowStockScanPayload struct {
	Threshold int64 `json:"threshold"`
}

// IdempotencyCleanupPayload overrides the retention window when positive.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLowStockScanTask constructs a stock:low_scan task.
func NewLowStockScanTask(threshold int64) (*asynq.Task, error) {
	return newTask(TaskLowStockScan, QueueStock, LowStockScanPayload{Threshold: threshold})
}

// NewStockReconcileTask constructs a stock:reconcile task.
func NewStockReconcileTask() (*asynq.Task, error) {
	return newTask(TaskStockReconcile, QueueStock, struct{}{})
}

// NewDashboardWarmupTask constructs a dashboard:warmup task.
func NewDashboardWarmupTask() (*asynq.Task, error) {
	return newTask(TaskDashboardWarmup, QueueDefault, struct{}{})
}

// NewIdempotencyCleanupTask constructs an idempotency:cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, QueueDefault, IdempotencyCleanupPayload{Retention: retention})
}

func newTask(typ, queue string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(queue)), nil
}

// decode unmarshals a task payload; an empty payload leaves dest untouched.
func decode(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}

// jobBase carries the logger, metrics and clock every job handler shares.
type jobBase struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

func (b jobBase) logger(job string) *slog.Logger {
	if b.Logger != nil {
		return b.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (b jobBase) metrics() *jobmetrics.Metrics {
	if b.Metrics != nil {
		return b.Metrics
	}
	return defaultJobMetrics
}

func (b jobBase) now() time.Time {
	if b.clock != nil {
		return b.clock()
	}
	return time.Now().UTC()
}
