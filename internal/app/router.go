package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/repairdesk/repairdesk/internal/audit"
	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/dashboard"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/observability"
	"github.com/repairdesk/repairdesk/internal/platform/httpx"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
	"github.com/repairdesk/repairdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Services   *Services
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with repairdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if svc := params.Services; svc != nil {
		r.Route("/api", func(r chi.Router) {
			r.Route("/items", inventory.NewHandler(logger, svc.Inventory).MountRoutes)
			r.Route("/sales", sales.NewHandler(logger, svc.Sales).MountRoutes)
			r.Route("/repairs", repairs.NewHandler(logger, svc.Repairs).MountRoutes)
			r.Route("/damaged", damage.NewHandler(logger, svc.Damage).MountRoutes)
			r.Route("/dashboard", dashboard.NewHandler(logger, svc.Dashboard).MountRoutes)
			r.Route("/audit", audit.NewHandler(logger, svc.Audit).MountRoutes)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
