package handlers

import (
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

type clientPayload struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
	Language string `json:"language" validate:"omitempty,max=16"`
}

type bookRequest struct {
	Date       string        `json:"date" validate:"required,datetime=2006-01-02"`
	Start      string        `json:"start" validate:"required,datetime=15:04"`
	ServiceIDs []string      `json:"service_ids" validate:"required,min=1,max=10,dive,required,max=64"`
	Client     clientPayload `json:"client"`
	Notes      string        `json:"notes" validate:"max=1000"`
}

type rejectionResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason"`
	ConflictID string `json:"conflict_id,omitempty"`
}

type appointmentResponse struct {
	AppointmentID   string           `json:"appointment_id"`
	Date            calendar.Date    `json:"date"`
	Start           calendar.Clock   `json:"start"`
	End             calendar.Clock   `json:"end"`
	DurationMinutes int              `json:"duration_minutes"`
	Status          model.Status     `json:"status"`
	TotalCents      int64            `json:"total_cents"`
	Services        []model.LineItem `json:"services"`
	Client          model.Client     `json:"client"`
	Notes           string           `json:"notes,omitempty"`
	CancelReason    string           `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty"`
	ReviewRequested bool             `json:"review_requested"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	items := a.Items
	if items == nil {
		items = []model.LineItem{}
	}
	return appointmentResponse{
		AppointmentID:   a.ID,
		Date:            a.Date,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
		TotalCents:      a.TotalCents,
		Services:        items,
		Client:          a.Client,
		Notes:           a.Notes,
		CancelReason:    a.CancelReason,
		CancelledAt:     a.CancelledAt,
		ReviewRequested: a.ReviewRequested,
		CreatedAt:       a.CreatedAt,
	}
}

type slotsResponse struct {
	Date            calendar.Date    `json:"date"`
	DurationMinutes int              `json:"duration_minutes"`
	Slots           []calendar.Clock `json:"slots"`
}

type dayHoursPayload struct {
	Weekday int    `json:"weekday" validate:"min=0,max=6"`
	Closed  bool   `json:"closed"`
	Open    string `json:"open" validate:"required_if=Closed false"`
	Close   string `json:"close" validate:"required_if=Closed false"`
}

type businessHoursPayload struct {
	Days []dayHoursPayload `json:"days" validate:"required,min=1,max=7,dive"`
}

type blockDateRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=200"`
}

type serviceRequest struct {
	ID              string `json:"id" validate:"omitempty,max=64"`
	Name            string `json:"name" validate:"required,max=120"`
	Description     string `json:"description" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=1440"`
	PriceCents      int64  `json:"price_cents" validate:"min=0"`
	Active          *bool  `json:"active"`
	DisplayOrder    int    `json:"display_order"`
}

func (r serviceRequest) toModel() model.Service {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return model.Service{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		PriceCents:      r.PriceCents,
		Active:          active,
		DisplayOrder:    r.DisplayOrder,
	}
}

type settingsRequest struct {
	BookingPaused      bool           `json:"booking_paused"`
	StoreDiscountPct   int            `json:"store_discount_pct" validate:"min=0,max=100"`
	ServiceDiscountPct map[string]int `json:"service_discount_pct" validate:"omitempty,dive,keys,required,endkeys,min=0,max=100"`
	ReviewDelayHours   *int           `json:"review_email_delay_hours" validate:"omitempty,min=0,max=720"`
}

type reviewRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,max=64"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=confirmed completed cancelled no_show"`
	Reason        string `json:"reason" validate:"max=500"`
}
