package model

import (
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, true
	}
	return "", false
}

// BlocksTime reports whether an appointment in this status occupies its
// interval. A completed appointment still happened in that slot.
func (s Status) BlocksTime() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

// LineItem is a service as it was priced when the appointment was booked.
type LineItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DiscountPct     int    `json:"discount_pct"`
	DurationMinutes int    `json:"duration_minutes"`
	OrderIndex      int    `json:"order_index"`
}

type Client struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language"`
}

type Appointment struct {
	ID              string
	Seq             int64
	Date            calendar.Date
	Start           calendar.Clock
	DurationMinutes int
	Status          Status
	Client          Client
	Notes           string
	TotalCents      int64
	Items           []LineItem
	CancelReason    string
	CancelledAt     *time.Time
	ReviewRequested bool
	CreatedAt       time.Time
}

// End is the exclusive end of the appointment on its date.
func (a Appointment) End() calendar.Clock {
	return a.Start.Add(a.DurationMinutes)
}

const DefaultLanguage = "de-CH"

// NormalizeLanguage maps a client-supplied language tag onto one of the
// languages emails are written in.
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(tag, "en"):
		return "en"
	case strings.HasPrefix(tag, "pt"):
		return "pt-BR"
	default:
		return DefaultLanguage
	}
}
