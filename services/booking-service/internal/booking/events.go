package booking

import (
	"github.com/Bobtechma/schonheitslokal2/libs/events"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/outbox"
)

func eventClient(c model.Client) events.Client {
	return events.Client{Name: c.Name, Email: c.Email, Phone: c.Phone, Language: c.Language}
}

func eventLines(items []model.LineItem) []events.ServiceLine {
	out := make([]events.ServiceLine, 0, len(items))
	for _, it := range items {
		out = append(out, events.ServiceLine{Name: it.Name, PriceCents: it.PriceCents, DurationMinutes: it.DurationMinutes})
	}
	return out
}

func bookedEvent(a model.Appointment) (outbox.Event, error) {
	return outbox.NewAppointmentEvent(events.AppointmentBooked, a.ID, events.AppointmentBookedPayload{
		AppointmentID:   a.ID,
		Date:            a.Date.String(),
		Start:           a.Start.String(),
		End:             a.End().String(),
		DurationMinutes: a.DurationMinutes,
		TotalCents:      a.TotalCents,
		Services:        eventLines(a.Items),
		Client:          eventClient(a.Client),
		Notes:           a.Notes,
	})
}

func cancelledEvent(a model.Appointment) (outbox.Event, error) {
	return outbox.NewAppointmentEvent(events.AppointmentCancelled, a.ID, events.AppointmentCancelledPayload{
		AppointmentID: a.ID,
		Date:          a.Date.String(),
		Start:         a.Start.String(),
		Reason:        a.CancelReason,
		Client:        eventClient(a.Client),
	})
}

func statusChangedEvent(id string, from, to model.Status) (outbox.Event, error) {
	return outbox.NewAppointmentEvent(events.AppointmentStatusChanged, id, events.AppointmentStatusChangedPayload{
		AppointmentID: id,
		From:          string(from),
		To:            string(to),
	})
}

func reviewRequestedEvent(a model.Appointment) (outbox.Event, error) {
	return outbox.NewAppointmentEvent(events.ReviewRequested, a.ID, events.ReviewRequestedPayload{
		AppointmentID: a.ID,
		Date:          a.Date.String(),
		Start:         a.Start.String(),
		Services:      eventLines(a.Items),
		Client:        eventClient(a.Client),
	})
}
