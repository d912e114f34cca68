package damage

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/repairdesk/repairdesk/internal/platform/httpx"
	"github.com/repairdesk/repairdesk/internal/shared"
)

// Handler wires HTTP endpoints for damage reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs damage handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers damage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reports, err := h.service.ListReports(r.Context(), shared.ParsePage(q.Get("page"), q.Get("page_size")))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if reports == nil {
		reports = []Report{}
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateReportInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.CreateReport(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}
