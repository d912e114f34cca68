package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/repairdesk/repairdesk/internal/platform/httpx"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const maxRange = 90 * 24 * time.Hour

// TimelineService is the business contract behind the handler.
type TimelineService interface {
	Timeline(ctx context.Context, filters Filters) (Result, error)
	Export(ctx context.Context, filters Filters) ([]Entry, error)
}

// Handler serves the audit trail.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	if err := writeCSV(w, entries); err != nil {
		h.logger.WarnContext(r.Context(), "write audit csv", slog.Any("error", err))
	}
}

func writeCSV(w http.ResponseWriter, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"at", "actor", "action", "entity", "entity_id", "meta"}); err != nil {
		return err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return err
			}
			meta = string(raw)
		}
		if err := cw.Write([]string{e.At.Format(time.RFC3339), e.Actor, e.Action, e.Entity, e.EntityID, meta}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseFilters reads from/to (YYYY-MM-DD, to inclusive), actor, entity, entity_id, action, page and page_size.
func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	var f Filters
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: from must be YYYY-MM-DD", shared.ErrValidation)
		}
		f.From = from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: to must be YYYY-MM-DD", shared.ErrValidation)
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		if !f.From.Before(f.To) {
			return Filters{}, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
		}
		if f.To.Sub(f.From) > maxRange {
			return Filters{}, fmt.Errorf("%w: range exceeds 90 days", shared.ErrValidation)
		}
	}
	f.Actor = q.Get("actor")
	f.Entity = q.Get("entity")
	f.EntityID = q.Get("entity_id")
	f.Action = q.Get("action")
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return f, nil
}
