package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 200
)

// PublicHandler serves the unauthenticated booking pages.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	menu, err := h.svc.Menu(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": menu})
}

// Slots answers GET ?date=YYYY-MM-DD&service_ids=a,b. service_id may also be
// repeated.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	d, err := calendar.ParseDate(q.Get("date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid date")
		return
	}
	ids := q["service_id"]
	for _, v := range q["service_ids"] {
		ids = append(ids, strings.Split(v, ",")...)
	}

	slots, err := h.svc.AvailableSlots(r.Context(), booking.SlotQuery{Date: d, ServiceIDs: ids})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:            slots.Date,
		DurationMinutes: slots.DurationMinutes,
		Slots:           slots.Starts,
	})
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > maxIdempotencyKey {
		httpx.WriteError(w, http.StatusBadRequest, "idempotency key too long")
		return
	}

	// The validator is more lenient than the calendar parsers ("9:30"
	// passes datetime=15:04), so the parsers have the last word.
	d, err := calendar.ParseDate(req.Date)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date: expected YYYY-MM-DD")
		return
	}
	start, err := calendar.ParseClock(req.Start)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "start: expected HH:MM")
		return
	}

	out, err := h.svc.Book(r.Context(), booking.BookRequest{
		Date:       d,
		Start:      start,
		ServiceIDs: req.ServiceIDs,
		Client: model.Client{
			Name:     req.Client.Name,
			Email:    req.Client.Email,
			Phone:    req.Client.Phone,
			Language: req.Client.Language,
		},
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if out.Replayed {
		w.Header().Set(replayedHeader, "true")
	}
	if !out.Accepted {
		httpx.WriteJSON(w, http.StatusConflict, rejectionResponse{
			Error:  "requested time is not available",
			Reason: string(out.Reason),
		})
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(out.Appointment))
}
