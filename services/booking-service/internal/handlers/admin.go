package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

// AdminHandler serves the salon back office. Routes are expected to sit
// behind auth.RequireRole.
type AdminHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAdminHandler(svc *booking.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

func (h *AdminHandler) BusinessHours(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	ctx := r.Context()
	current, err := h.svc.BusinessHours(ctx)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if r.Method == http.MethodGet {
		httpx.WriteJSON(w, http.StatusOK, hoursPayload(current))
		return
	}

	var req businessHoursPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	// Days left out keep their current hours.
	next := current
	for _, day := range req.Days {
		dh := calendar.DayHours{Closed: day.Closed}
		if !day.Closed {
			if dh.Open, err = calendar.ParseClock(day.Open); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			if dh.Close, err = calendar.ParseClock(day.Close); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		next[day.Weekday] = dh
	}
	if err := h.svc.SetBusinessHours(ctx, next); err != nil {
		var cfgErr *calendar.ConfigurationError
		if errors.As(err, &cfgErr) {
			httpx.WriteError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, hoursPayload(next))
}

func hoursPayload(bh calendar.BusinessHours) businessHoursPayload {
	out := businessHoursPayload{Days: make([]dayHoursPayload, 0, len(bh))}
	for wd, h := range bh {
		day := dayHoursPayload{Weekday: wd, Closed: h.Closed}
		if !h.Closed {
			day.Open, day.Close = h.Open.String(), h.Close.String()
		}
		out.Days = append(out.Days, day)
	}
	return out
}

func (h *AdminHandler) BlockedDates(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		list, err := h.svc.BlockedDates(ctx)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked_dates": list})

	case http.MethodPost:
		var req blockDateRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "date: expected YYYY-MM-DD")
			return
		}
		if err := h.svc.BlockDate(ctx, d, req.Reason); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, booking.BlockedDate{Date: d, Reason: strings.TrimSpace(req.Reason)})

	case http.MethodDelete:
		d, err := calendar.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid date")
			return
		}
		if err := h.svc.UnblockDate(ctx, d); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodPut) {
		return
	}
	ctx := r.Context()
	if r.Method == http.MethodGet {
		list, err := h.svc.Services(ctx)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if list == nil {
			list = []model.Service{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": list})
		return
	}

	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if r.Method == http.MethodPost {
		svc, err := h.svc.CreateService(ctx, req.toModel())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, svc)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	svc, err := h.svc.UpdateService(ctx, req.toModel())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, svc)
}

func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	ctx := r.Context()
	if r.Method == http.MethodPut {
		var req settingsRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		st := model.DefaultSettings()
		st.BookingPaused = req.BookingPaused
		st.StoreDiscountPct = req.StoreDiscountPct
		for id, pct := range req.ServiceDiscountPct {
			st.ServiceDiscountPct[id] = pct
		}
		if req.ReviewDelayHours != nil {
			st.ReviewDelayHours = *req.ReviewDelayHours
		}
		if err := h.svc.SaveSettings(ctx, st); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if st.BookingPaused {
			h.logger.Warn("online booking paused")
		}
	}
	st, err := h.svc.Settings(ctx)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

// Appointments answers GET ?id=, ?date= or ?from=&to=.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("id")); id != "" {
		a, err := h.svc.GetAppointment(ctx, id)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(a))
		return
	}

	from, to, err := dateRange(q.Get("date"), q.Get("from"), q.Get("to"), h.svc.Today())
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.svc.ListAppointments(ctx, from, to)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// dateRange defaults to today when nothing is given.
func dateRange(date, from, to string, today calendar.Date) (calendar.Date, calendar.Date, error) {
	if date != "" {
		d, err := calendar.ParseDate(date)
		return d, d, err
	}
	if from == "" && to == "" {
		return today, today, nil
	}
	f, err := calendar.ParseDate(from)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	if to == "" {
		return f, f, nil
	}
	t, err := calendar.ParseDate(to)
	return f, t, err
}

func (h *AdminHandler) AppointmentStatus(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	change, err := h.svc.UpdateStatus(r.Context(), req.AppointmentID, model.Status(req.Status), req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !change.Decision.Accepted {
		httpx.WriteJSON(w, http.StatusConflict, rejectionResponse{
			Error:      "appointment overlaps another booking",
			Reason:     string(change.Decision.Reason),
			ConflictID: change.Decision.ConflictID,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(change.Appointment))
}

// AppointmentReview sends the review request email for one appointment now.
func (h *AdminHandler) AppointmentReview(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	a, err := h.svc.RequestReview(r.Context(), req.AppointmentID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, toAppointmentResponse(a))
}
