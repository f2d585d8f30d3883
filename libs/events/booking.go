// Package events holds the Kafka topics and JSON payloads shared by the
// booking and notification services. A topic name equals its event type.
package events

const (
	AppointmentBooked        = "booking.appointment.booked.v1"
	AppointmentCancelled     = "booking.appointment.cancelled.v1"
	AppointmentStatusChanged = "booking.appointment.status_changed.v1"
	ReviewRequested          = "booking.review.requested.v1"
)

// NotificationTopics are the topics that result in an email to the client.
var NotificationTopics = []string{AppointmentBooked, AppointmentCancelled, ReviewRequested}

type Client struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language"`
}

type ServiceLine struct {
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Dates are YYYY-MM-DD and times HH:MM in the salon's local time.
type AppointmentBookedPayload struct {
	AppointmentID   string        `json:"appointment_id"`
	Date            string        `json:"date"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	DurationMinutes int           `json:"duration_minutes"`
	TotalCents      int64         `json:"total_cents"`
	Services        []ServiceLine `json:"services"`
	Client          Client        `json:"client"`
	Notes           string        `json:"notes,omitempty"`
}

type AppointmentCancelledPayload struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	Reason        string `json:"reason,omitempty"`
	Client        Client `json:"client"`
}

type AppointmentStatusChangedPayload struct {
	AppointmentID string `json:"appointment_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

type ReviewRequestedPayload struct {
	AppointmentID string        `json:"appointment_id"`
	Date          string        `json:"date"`
	Start         string        `json:"start"`
	Services      []ServiceLine `json:"services"`
	Client        Client        `json:"client"`
}
