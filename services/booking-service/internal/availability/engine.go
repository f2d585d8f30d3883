package availability

import (
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

// Reason explains why a booking was rejected.
type Reason string

const (
	ReasonOverlap      Reason = "OVERLAP"
	ReasonOutsideHours Reason = "OUTSIDE_HOURS"
	ReasonDateBlocked  Reason = "DATE_BLOCKED"
)

type Query struct {
	Date            calendar.Date
	DurationMinutes int
	// IntervalMinutes defaults to DefaultIntervalMinutes when zero.
	IntervalMinutes int
}

// ComputeAvailableSlots lists the start times on q.Date at which a booking of
// q.DurationMinutes fits inside opening hours without overlapping any
// appointment that blocks time. existing may contain other dates and
// non-blocking appointments; they are ignored.
func ComputeAvailableSlots(q Query, rules calendar.Rules, existing []model.Appointment) ([]calendar.Clock, error) {
	if q.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	interval := q.IntervalMinutes
	if interval == 0 {
		interval = DefaultIntervalMinutes
	}

	w, open, err := rules.OpenWindow(q.Date)
	if err != nil {
		return nil, err
	}
	if !open {
		return []calendar.Clock{}, nil
	}

	candidates, err := GenerateSlots(w.Open, w.Close, interval)
	if err != nil {
		return nil, err
	}
	busy := blocking(q.Date, existing, "")

	out := make([]calendar.Clock, 0, len(candidates))
	for _, s := range candidates {
		if s.Add(q.DurationMinutes) > w.Close {
			continue
		}
		if _, hit := firstOverlap(s, q.DurationMinutes, busy); hit {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type Candidate struct {
	Date            calendar.Date
	Start           calendar.Clock
	DurationMinutes int
	// ExcludeID skips the appointment being re-validated, e.g. when a
	// cancelled appointment is reinstated.
	ExcludeID string
}

type Decision struct {
	Accepted   bool
	Reason     Reason
	ConflictID string
}

// ValidateBooking is the authoritative check run before a write. Reasons are
// reported in the order DATE_BLOCKED, OUTSIDE_HOURS, OVERLAP.
func ValidateBooking(c Candidate, rules calendar.Rules, existing []model.Appointment) (Decision, error) {
	if c.DurationMinutes <= 0 {
		return Decision{}, ErrInvalidDuration
	}
	if rules.IsBlocked(c.Date) {
		return Decision{Reason: ReasonDateBlocked}, nil
	}
	w, open, err := rules.OpenWindow(c.Date)
	if err != nil {
		return Decision{}, err
	}
	if !open || !w.Contains(c.Start, c.DurationMinutes) {
		return Decision{Reason: ReasonOutsideHours}, nil
	}
	if a, hit := FirstConflict(c, existing); hit {
		return Decision{Reason: ReasonOverlap, ConflictID: a.ID}, nil
	}
	return Decision{Accepted: true}, nil
}

// FirstConflict returns an appointment in existing that blocks time on
// c.Date and overlaps the candidate interval. Opening hours are not checked.
func FirstConflict(c Candidate, existing []model.Appointment) (model.Appointment, bool) {
	return firstOverlap(c.Start, c.DurationMinutes, blocking(c.Date, existing, c.ExcludeID))
}

func blocking(d calendar.Date, existing []model.Appointment, excludeID string) []model.Appointment {
	out := make([]model.Appointment, 0, len(existing))
	for _, a := range existing {
		if a.Date != d || !a.Status.BlocksTime() {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		out = append(out, a)
	}
	return out
}

func firstOverlap(s calendar.Clock, minutes int, busy []model.Appointment) (model.Appointment, bool) {
	for _, a := range busy {
		if overlaps(s, minutes, a.Start, a.DurationMinutes) {
			return a, true
		}
	}
	return model.Appointment{}, false
}
