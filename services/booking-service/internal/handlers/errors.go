package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
)

// writeServiceError maps booking errors to responses. Anything unexpected is
// logged and reported as a 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var cfgErr *calendar.ConfigurationError
	switch {
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, booking.ErrUnknownService):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrBookingPaused):
		httpx.WriteError(w, http.StatusLocked, err.Error())
	case errors.Is(err, booking.ErrSlotInPast):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrSerialization), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "busy, please retry")
	case errors.As(err, &cfgErr):
		logger.Error("calendar misconfigured", "err", err, "path", r.URL.Path)
		httpx.WriteError(w, http.StatusInternalServerError, "calendar configuration error")
	default:
		logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
