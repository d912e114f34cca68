package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/repairdesk/repairdesk/internal/platform/httpx"
)

const defaultConcurrency = 4

// Worker runs the stock job handlers and, when a schedule is given, the cron scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler binds a task type to its handler.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// Jobs bundles the handlers the worker serves. Nil jobs are not registered.
type Jobs struct {
	LowStock  *LowStockScanJob
	Reconcile *StockReconcileJob
	Warmup    *DashboardWarmupJob
	Cleanup   *IdempotencyCleanupJob
}

// Handlers lists the configured jobs by task type.
func (j Jobs) Handlers() []TaskHandler {
	var out []TaskHandler
	if j.LowStock != nil {
		out = append(out, TaskHandler{Type: TaskLowStockScan, Handler: j.LowStock.Handle})
	}
	if j.Reconcile != nil {
		out = append(out, TaskHandler{Type: TaskStockReconcile, Handler: j.Reconcile.Handle})
	}
	if j.Warmup != nil {
		out = append(out, TaskHandler{Type: TaskDashboardWarmup, Handler: j.Warmup.Handle})
	}
	if j.Cleanup != nil {
		out = append(out, TaskHandler{Type: TaskIdempotencyCleanup, Handler: j.Cleanup.Handle})
	}
	return out
}

// Schedule holds cron expressions for the recurring jobs. An empty expression disables that job.
type Schedule struct {
	LowStockScan       string
	Reconcile          string
	DashboardWarmup    string
	IdempotencyCleanup string
}

// Registrations builds scheduler entries. Payloads are empty so each handler
// falls back to its configured threshold or retention.
func (s Schedule) Registrations() ([]CronRegistration, error) {
	type entry struct {
		spec  string
		build func() (*asynq.Task, error)
		opts  []asynq.Option
	}
	entries := []entry{
		{s.LowStockScan, func() (*asynq.Task, error) { return NewLowStockScanTask(0) }, []asynq.Option{asynq.MaxRetry(3)}},
		{s.Reconcile, NewStockReconcileTask, []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(10 * time.Minute)}},
		{s.DashboardWarmup, NewDashboardWarmupTask, []asynq.Option{asynq.MaxRetry(1), asynq.Unique(time.Minute)}},
		{s.IdempotencyCleanup, func() (*asynq.Task, error) { return NewIdempotencyCleanupTask(0) }, []asynq.Option{asynq.MaxRetry(3)}},
	}
	var out []CronRegistration
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		task, err := e.build()
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: e.spec, Task: task, Options: e.opts})
	}
	return out, nil
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker serving QueueStock ahead of QueueDefault.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     concurrency,
		Queues:          queueWeights,
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler:    failureLogger(logger),
		Logger:          newAsynqLogger(logger),
		LogLevel:        asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC, Logger: newAsynqLogger(logger)})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("jobs: schedule %s at %q: %w", entry.Task.Type(), entry.Spec, err)
			}
			logger.Info("scheduled job", slog.String("task", entry.Task.Type()), slog.String("cron", entry.Spec))
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// failureLogger reports failed runs. The last attempt, or one that will not be
// retried, is logged as an error; earlier attempts as warnings.
func failureLogger(logger *slog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		level := slog.LevelWarn
		if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "job failed",
			slog.String("task", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err))
	}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Shutdown()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.logger.Info("stopping worker")
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueDashboardWarmup asks the worker to recompute the dashboard cache.
func (c *Client) EnqueueDashboardWarmup(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewDashboardWarmupTask()
	if err != nil {
		return nil, err
	}
	// Writes arriving in bursts collapse into one warmup per window.
	return c.client.EnqueueContext(ctx, task, asynq.Unique(30*time.Second))
}

// EnqueueStockReconcile requests an out-of-schedule reconcile.
func (c *Client) EnqueueStockReconcile(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewStockReconcileTask()
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler serves the job queue health endpoint.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs the handler. A nil inspector reports empty queues.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

// QueueHealth is the state of one queue.
type QueueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
	Failed  int    `json:"failed_today"`
}

// HealthReport is the /jobs/health payload.
type HealthReport struct {
	Queues []QueueHealth `json:"queues"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{Queues: make([]QueueHealth, 0, len(Queues))}
	var existing []string
	if h.inspector != nil {
		var err error
		if existing, err = h.inspector.Queues(); err != nil {
			h.unavailable(w, err)
			return
		}
	}
	for _, name := range Queues {
		health := QueueHealth{Queue: name}
		// A queue that never received a task does not exist yet.
		if slices.Contains(existing, name) {
			info, err := h.inspector.GetQueueInfo(name)
			if err != nil {
				h.unavailable(w, err)
				return
			}
			if info == nil {
				report.Queues = append(report.Queues, health)
				continue
			}
			health = QueueHealth{Queue: info.Queue, Pending: info.Pending, Active: info.Active, Retry: info.Retry, Failed: info.Failed}
		}
		report.Queues = append(report.Queues, health)
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) unavailable(w http.ResponseWriter, err error) {
	h.logger.Warn("jobs health", slog.Any("error", err))
	httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job queue is not reachable")
}
