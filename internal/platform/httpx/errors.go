// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/repairdesk/repairdesk/internal/shared"
)

type stockShortage interface {
	AvailableStock() int64
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var shortage stockShortage
	switch {
	case errors.As(err, &shortage):
		available := shortage.AvailableStock()
		write(w, ProblemDetail{
			Type:      "insufficient-stock",
			Title:     "Insufficient Stock",
			Status:    http.StatusUnprocessableEntity,
			Detail:    err.Error(),
			Available: &available,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConcurrentModification):
		write(w, ProblemDetail{
			Type:      "concurrent-modification",
			Title:     "Concurrent Modification",
			Status:    http.StatusConflict,
			Detail:    err.Error(),
			Retryable: true,
		})
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrRejected):
		Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
